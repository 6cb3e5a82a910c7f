package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/dar/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// memStore is an in-memory repository.Store. Transactions are serialized
// and roll back by restoring a snapshot taken when they began.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data memData

	// failOn makes the named Querier method return the error.
	failOn map[string]error
}

type memData struct {
	variants   map[[16]byte]repository.Variant
	cart       map[string][]repository.CartItem
	addresses  []repository.Address
	promos     []repository.PromoCode
	orders     []repository.Order
	items      []repository.OrderItem
	history    []repository.OrderStatusHistory
	jobs       []repository.Job
	historySeq int64
}

func (d memData) clone() memData {
	c := d
	c.variants = maps.Clone(d.variants)
	c.cart = make(map[string][]repository.CartItem, len(d.cart))
	for k, v := range d.cart {
		c.cart[k] = slices.Clone(v)
	}
	c.addresses = slices.Clone(d.addresses)
	c.promos = slices.Clone(d.promos)
	c.orders = slices.Clone(d.orders)
	c.items = slices.Clone(d.items)
	c.history = slices.Clone(d.history)
	c.jobs = slices.Clone(d.jobs)
	return c
}

func newMemStore() *memStore {
	return &memStore{
		data: memData{
			variants: map[[16]byte]repository.Variant{},
			cart:     map[string][]repository.CartItem{},
		},
		failOn: map[string]error{},
	}
}

var _ repository.Store = (*memStore)(nil)

func newID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func stamp() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now(), Valid: true}
}

func (s *memStore) fail(method string) error {
	return s.failOn[method]
}

func (s *memStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Catalog

func (s *memStore) GetVariant(ctx context.Context, id pgtype.UUID) (repository.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetVariant"); err != nil {
		return repository.Variant{}, err
	}
	v, ok := s.data.variants[id.Bytes]
	if !ok {
		return repository.Variant{}, pgx.ErrNoRows
	}
	return v, nil
}

func (s *memStore) ListVariantsByIDs(ctx context.Context, ids []pgtype.UUID) ([]repository.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListVariantsByIDs"); err != nil {
		return nil, err
	}
	var out []repository.Variant
	for _, id := range ids {
		if v, ok := s.data.variants[id.Bytes]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memStore) GetVariantStock(ctx context.Context, id pgtype.UUID) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data.variants[id.Bytes]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return v.Stock, nil
}

func (s *memStore) DecrementVariantStock(ctx context.Context, arg repository.DecrementVariantStockParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DecrementVariantStock"); err != nil {
		return 0, err
	}
	v, ok := s.data.variants[arg.ID.Bytes]
	if !ok || v.Stock < arg.Quantity {
		return 0, nil
	}
	v.Stock -= arg.Quantity
	s.data.variants[arg.ID.Bytes] = v
	return 1, nil
}

// Cart

func (s *memStore) ListCartItems(ctx context.Context, shopperID string) ([]repository.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListCartItems"); err != nil {
		return nil, err
	}
	return slices.Clone(s.data.cart[shopperID]), nil
}

func (s *memStore) putCartItem(shopperID string, variantID pgtype.UUID, qty int32, add bool) repository.CartItem {
	items := s.data.cart[shopperID]
	for i := range items {
		if items[i].VariantID == variantID {
			if add {
				items[i].Quantity += qty
			} else {
				items[i].Quantity = qty
			}
			items[i].UpdatedAt = stamp()
			return items[i]
		}
	}
	item := repository.CartItem{
		ID:        newID(),
		ShopperID: shopperID,
		VariantID: variantID,
		Quantity:  qty,
		CreatedAt: stamp(),
		UpdatedAt: stamp(),
	}
	s.data.cart[shopperID] = append(items, item)
	return item
}

func (s *memStore) UpsertCartItem(ctx context.Context, arg repository.UpsertCartItemParams) (repository.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertCartItem"); err != nil {
		return repository.CartItem{}, err
	}
	return s.putCartItem(arg.ShopperID, arg.VariantID, arg.Quantity, true), nil
}

func (s *memStore) SetCartItemQuantity(ctx context.Context, arg repository.SetCartItemQuantityParams) (repository.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putCartItem(arg.ShopperID, arg.VariantID, arg.Quantity, false), nil
}

func (s *memStore) DeleteCartItem(ctx context.Context, arg repository.DeleteCartItemParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.cart[arg.ShopperID] = slices.DeleteFunc(s.data.cart[arg.ShopperID], func(i repository.CartItem) bool {
		return i.VariantID == arg.VariantID
	})
	return nil
}

func (s *memStore) ClearCartItems(ctx context.Context, shopperID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ClearCartItems"); err != nil {
		return err
	}
	delete(s.data.cart, shopperID)
	return nil
}

// Addresses

func (s *memStore) GetShopperAddress(ctx context.Context, arg repository.GetShopperAddressParams) (repository.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.data.addresses {
		if a.ID == arg.ID && a.ShopperID == arg.ShopperID {
			return a, nil
		}
	}
	return repository.Address{}, pgx.ErrNoRows
}

func (s *memStore) CreateAddress(ctx context.Context, arg repository.CreateAddressParams) (repository.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := repository.Address{
		ID:          newID(),
		ShopperID:   arg.ShopperID,
		FullName:    arg.FullName,
		Phone:       arg.Phone,
		Street:      arg.Street,
		Building:    arg.Building,
		Floor:       arg.Floor,
		Apartment:   arg.Apartment,
		City:        arg.City,
		Governorate: arg.Governorate,
		Latitude:    arg.Latitude,
		Longitude:   arg.Longitude,
		IsDefault:   arg.IsDefault,
		CreatedAt:   stamp(),
	}
	s.data.addresses = append(s.data.addresses, a)
	return a, nil
}

func (s *memStore) ClearDefaultAddresses(ctx context.Context, shopperID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.addresses {
		if s.data.addresses[i].ShopperID == shopperID {
			s.data.addresses[i].IsDefault = false
		}
	}
	return nil
}

// Promo codes

func (s *memStore) GetPromoCodeByCode(ctx context.Context, code string) (repository.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetPromoCodeByCode"); err != nil {
		return repository.PromoCode{}, err
	}
	for _, p := range s.data.promos {
		if strings.EqualFold(p.Code, code) {
			return p, nil
		}
	}
	return repository.PromoCode{}, pgx.ErrNoRows
}

func (s *memStore) CountShopperPromoUses(ctx context.Context, arg repository.CountShopperPromoUsesParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, o := range s.data.orders {
		if o.ShopperID == arg.ShopperID && o.PromoCodeID == arg.PromoCodeID && o.Status != "CANCELLED" {
			n++
		}
	}
	return n, nil
}

func (s *memStore) IncrementPromoUses(ctx context.Context, id pgtype.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.promos {
		if s.data.promos[i].ID == id {
			s.data.promos[i].CurrentUses++
		}
	}
	return nil
}

// Orders

func (s *memStore) CreateOrder(ctx context.Context, arg repository.CreateOrderParams) (repository.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateOrder"); err != nil {
		return repository.Order{}, err
	}
	o := repository.Order{
		ID:                  newID(),
		OrderNumber:         arg.OrderNumber,
		ShopperID:           arg.ShopperID,
		IsGuest:             arg.IsGuest,
		Email:               arg.Email,
		Status:              arg.Status,
		Subtotal:            arg.Subtotal,
		Discount:            arg.Discount,
		ShippingCost:        arg.ShippingCost,
		Total:               arg.Total,
		PromoCodeID:         arg.PromoCodeID,
		PaymentMethod:       arg.PaymentMethod,
		ShippingFullName:    arg.ShippingFullName,
		ShippingPhone:       arg.ShippingPhone,
		ShippingStreet:      arg.ShippingStreet,
		ShippingBuilding:    arg.ShippingBuilding,
		ShippingFloor:       arg.ShippingFloor,
		ShippingApartment:   arg.ShippingApartment,
		ShippingCity:        arg.ShippingCity,
		ShippingGovernorate: arg.ShippingGovernorate,
		ShippingLatitude:    arg.ShippingLatitude,
		ShippingLongitude:   arg.ShippingLongitude,
		GatewayOrderID:      arg.GatewayOrderID,
		TrackingToken:       arg.TrackingToken,
		CustomerNote:        arg.CustomerNote,
		CreatedAt:           stamp(),
		UpdatedAt:           stamp(),
	}
	s.data.orders = append(s.data.orders, o)
	return o, nil
}

func (s *memStore) CreateOrderItem(ctx context.Context, arg repository.CreateOrderItemParams) (repository.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := repository.OrderItem{
		ID:          newID(),
		OrderID:     arg.OrderID,
		VariantID:   arg.VariantID,
		ProductName: arg.ProductName,
		VariantName: arg.VariantName,
		Quantity:    arg.Quantity,
		UnitPrice:   arg.UnitPrice,
		LineTotal:   arg.LineTotal,
		Position:    arg.Position,
	}
	s.data.items = append(s.data.items, item)
	return item, nil
}

func (s *memStore) CreateOrderStatusHistory(ctx context.Context, arg repository.CreateOrderStatusHistoryParams) (repository.OrderStatusHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateOrderStatusHistory"); err != nil {
		return repository.OrderStatusHistory{}, err
	}
	s.data.historySeq++
	h := repository.OrderStatusHistory{
		ID:        s.data.historySeq,
		OrderID:   arg.OrderID,
		Status:    arg.Status,
		Note:      arg.Note,
		Actor:     arg.Actor,
		CreatedAt: stamp(),
	}
	s.data.history = append(s.data.history, h)
	return h, nil
}

func (s *memStore) findOrder(match func(repository.Order) bool) (repository.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.data.orders {
		if match(o) {
			return o, nil
		}
	}
	return repository.Order{}, pgx.ErrNoRows
}

func (s *memStore) GetOrder(ctx context.Context, id pgtype.UUID) (repository.Order, error) {
	return s.findOrder(func(o repository.Order) bool { return o.ID == id })
}

func (s *memStore) GetOrderForUpdate(ctx context.Context, id pgtype.UUID) (repository.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *memStore) GetOrderByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (repository.Order, error) {
	return s.findOrder(func(o repository.Order) bool {
		return o.GatewayOrderID.Valid && o.GatewayOrderID.String == gatewayOrderID
	})
}

func (s *memStore) GetOrderByTrackingToken(ctx context.Context, trackingToken string) (repository.Order, error) {
	return s.findOrder(func(o repository.Order) bool { return o.TrackingToken == trackingToken })
}

func (s *memStore) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]repository.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.OrderItem
	for _, it := range s.data.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b repository.OrderItem) int { return int(a.Position - b.Position) })
	return out, nil
}

func (s *memStore) ListOrderStatusHistory(ctx context.Context, orderID pgtype.UUID) ([]repository.OrderStatusHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.OrderStatusHistory
	for _, h := range s.data.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *memStore) updateOrder(id pgtype.UUID, fn func(*repository.Order)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.orders {
		if s.data.orders[i].ID == id {
			fn(&s.data.orders[i])
			s.data.orders[i].UpdatedAt = stamp()
		}
	}
}

func (s *memStore) UpdateOrderStatus(ctx context.Context, arg repository.UpdateOrderStatusParams) error {
	s.updateOrder(arg.ID, func(o *repository.Order) { o.Status = arg.Status })
	return nil
}

func (s *memStore) MarkOrderPaid(ctx context.Context, arg repository.MarkOrderPaidParams) error {
	s.updateOrder(arg.ID, func(o *repository.Order) {
		o.IsPaid = true
		o.PaidAt = arg.PaidAt
		o.GatewayTransactionID = arg.GatewayTransactionID
	})
	return nil
}

// Jobs

func (s *memStore) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := repository.Job{
		ID:          newID(),
		JobType:     arg.JobType,
		Payload:     arg.Payload,
		Status:      "pending",
		MaxAttempts: arg.MaxAttempts,
		RunAt:       stamp(),
		CreatedAt:   stamp(),
	}
	s.data.jobs = append(s.data.jobs, j)
	return j, nil
}

func (s *memStore) ClaimNextJob(ctx context.Context) (repository.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.jobs {
		if s.data.jobs[i].Status == "pending" {
			s.data.jobs[i].Status = "running"
			s.data.jobs[i].Attempts++
			return s.data.jobs[i], nil
		}
	}
	return repository.Job{}, pgx.ErrNoRows
}

func (s *memStore) CompleteJob(ctx context.Context, id pgtype.UUID) error {
	return errors.New("not used by service tests")
}

func (s *memStore) FailJob(ctx context.Context, arg repository.FailJobParams) error {
	return errors.New("not used by service tests")
}

func (s *memStore) DeleteFinishedJobs(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	return 0, errors.New("not used by service tests")
}

// Seeding and inspection helpers

func (s *memStore) addVariant(name string, price int64, stock int32) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := repository.Variant{
		ID:          newID(),
		ProductID:   newID(),
		CategoryID:  newID(),
		ProductName: name,
		Sku:         strings.ToUpper(strings.ReplaceAll(name, " ", "-")),
		BasePrice:   price,
		Stock:       stock,
		IsActive:    true,
	}
	s.data.variants[v.ID.Bytes] = v
	return uuidString(v.ID)
}

func (s *memStore) variant(id string) repository.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid, _ := parseUUID(id)
	return s.data.variants[pid.Bytes]
}

func (s *memStore) setVariant(id string, fn func(*repository.Variant)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid, _ := parseUUID(id)
	v := s.data.variants[pid.Bytes]
	fn(&v)
	s.data.variants[pid.Bytes] = v
}

func (s *memStore) addPromo(p repository.PromoCode) repository.PromoCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = newID()
	if p.DiscountType == "" {
		p.DiscountType = "FIXED"
	}
	p.IsActive = true
	s.data.promos = append(s.data.promos, p)
	return p
}

func (s *memStore) promo(id pgtype.UUID) repository.PromoCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.data.promos {
		if p.ID == id {
			return p
		}
	}
	return repository.PromoCode{}
}

func (s *memStore) addAddress(shopperID, governorate string) string {
	a, _ := s.CreateAddress(context.Background(), repository.CreateAddressParams{
		ShopperID:   shopperID,
		FullName:    "Mona Adel",
		Phone:       "01000000000",
		Street:      "12 Makram Ebeid",
		City:        "Nasr City",
		Governorate: governorate,
	})
	return uuidString(a.ID)
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.orders)
}

func (s *memStore) addressCount(shopperID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.data.addresses {
		if a.ShopperID == shopperID {
			n++
		}
	}
	return n
}
