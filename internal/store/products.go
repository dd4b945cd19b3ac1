package store

import (
	"context"
	"strings"
	"sync"

	"priceoptool/internal/events"
	"priceoptool/internal/notify"
	"priceoptool/pkg/domain"
)

// ProductAPI is the slice of the backend client the store needs.
type ProductAPI interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListPricingOptimization(ctx context.Context) ([]domain.Product, error)
	DemandForecast(ctx context.Context, ids []int64) ([]domain.ForecastRow, error)
}

// Products owns the two product collections: the general catalog (full
// CRUD) and the read-only pricing-optimization view, plus the category
// index derived from whichever collection was last fetched. Every
// mutation waits for server acknowledgment; there are no optimistic
// updates. Failures leave prior state intact and surface only through
// the notification sink and the returned error.
type Products struct {
	api  ProductAPI
	sink *notify.Sink
	bus  *events.Bus

	mu              sync.RWMutex
	products        []domain.Product
	pricing         []domain.Product
	categories      []string
	forecastEnabled bool
}

// NewProducts builds an empty store.
func NewProducts(api ProductAPI, sink *notify.Sink, bus *events.Bus) *Products {
	return &Products{api: api, sink: sink, bus: bus}
}

// FetchProducts replaces the catalog wholesale with the server response
// and recomputes the category index from it.
func (s *Products) FetchProducts(ctx context.Context) error {
	fetched, err := s.api.ListProducts(ctx)
	if err != nil {
		s.sink.Publish("Record Fetch Failed!")
		return err
	}
	s.mu.Lock()
	s.products = fetched
	s.categories = categoriesOf(fetched)
	s.mu.Unlock()
	s.publish(events.TopicProductsChanged)
	return nil
}

// FetchPricingOptimization replaces the pricing view wholesale and
// recomputes the category index from it.
func (s *Products) FetchPricingOptimization(ctx context.Context) error {
	fetched, err := s.api.ListPricingOptimization(ctx)
	if err != nil {
		s.sink.Publish("Record Fetch Failed!")
		return err
	}
	s.mu.Lock()
	s.pricing = fetched
	s.categories = categoriesOf(fetched)
	s.mu.Unlock()
	s.publish(events.TopicPricingChanged)
	return nil
}

// AddProduct submits p and, on acknowledgment, appends the submitted
// fields merged with the server-assigned id. Server-derived fields beyond
// the id only appear after the next full fetch.
func (s *Products) AddProduct(ctx context.Context, p domain.Product) error {
	created, err := s.api.CreateProduct(ctx, p)
	if err != nil {
		s.sink.Publish("Record Addition Failed!")
		return err
	}
	p.ID = created.ID
	s.mu.Lock()
	if i := indexByID(s.products, p.ID); i >= 0 {
		s.products[i] = p
	} else {
		s.products = append(s.products, p)
	}
	s.mu.Unlock()
	s.sink.Publish("Record Added Successfully!")
	s.publish(events.TopicProductsChanged)
	return nil
}

// UpdateProduct sends the full record keyed by id and, on acknowledgment,
// replaces the matching catalog entry with the submitted record.
func (s *Products) UpdateProduct(ctx context.Context, p domain.Product) error {
	if _, err := s.api.UpdateProduct(ctx, p); err != nil {
		s.sink.Publish("Record Updation Failed!")
		return err
	}
	s.mu.Lock()
	if i := indexByID(s.products, p.ID); i >= 0 {
		s.products[i] = p
	}
	s.mu.Unlock()
	s.sink.Publish("Record Updated Successfully!")
	s.publish(events.TopicProductsChanged)
	return nil
}

// DeleteProduct removes the catalog entry with the given id after the
// backend acknowledges the delete.
func (s *Products) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.api.DeleteProduct(ctx, id); err != nil {
		s.sink.Publish("Record Deletion Failed!")
		return err
	}
	s.mu.Lock()
	kept := s.products[:0]
	for _, p := range s.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.products = kept
	s.mu.Unlock()
	s.sink.Publish("Record Deleted Successfully!")
	s.publish(events.TopicProductsChanged)
	return nil
}

// Filtered returns the entries of the selected collection whose name
// contains search case-insensitively and whose category equals category
// (any category when empty). Pure: a fresh slice each call, backing
// state untouched.
func (s *Products) Filtered(search, category string, collection domain.Collection) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	source := s.pricing
	if collection == domain.CollectionProducts {
		source = s.products
	}
	needle := strings.ToLower(search)
	out := make([]domain.Product, 0, len(source))
	for _, p := range source {
		if !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Products returns a copy of the catalog.
func (s *Products) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product(nil), s.products...)
}

// PricingOptimization returns a copy of the pricing view.
func (s *Products) PricingOptimization() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product(nil), s.pricing...)
}

// Categories returns the distinct category values of the most recently
// fetched collection, in first-seen order.
func (s *Products) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.categories...)
}

// DemandForecast fetches forecast rows for the given product ids. The
// result is returned to the caller and never stored.
func (s *Products) DemandForecast(ctx context.Context, ids []int64) ([]domain.ForecastRow, error) {
	rows, err := s.api.DemandForecast(ctx, ids)
	if err != nil {
		s.sink.Publish("Record Fetch Failed!")
		return nil, err
	}
	return rows, nil
}

// SetForecastEnabled toggles the demand-forecast view flag.
func (s *Products) SetForecastEnabled(enabled bool) {
	s.mu.Lock()
	s.forecastEnabled = enabled
	s.mu.Unlock()
	s.publish(events.TopicProductsChanged)
}

// ForecastEnabled reports the demand-forecast view flag.
func (s *Products) ForecastEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forecastEnabled
}

func (s *Products) publish(topic string) {
	if s.bus != nil {
		s.bus.Publish(topic)
	}
}

func categoriesOf(products []domain.Product) []string {
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0, len(products))
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

func indexByID(products []domain.Product, id int64) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}
