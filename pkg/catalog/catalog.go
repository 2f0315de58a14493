// Package catalog is an in-memory store of demo users and products served
// under /api. Nothing is persisted.
package catalog

import (
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"
)

var ErrNotFound = errors.New("not found")

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

type CreateUser struct {
	Name     string `json:"name" binding:"required,min=1"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type UpdateUser struct {
	Name  *string `json:"name" binding:"omitempty,min=1"`
	Email *string `json:"email" binding:"omitempty,email"`
}

type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

type CreateProduct struct {
	Name        string  `json:"name" binding:"required,min=1"`
	Description *string `json:"description"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Stock       *int    `json:"stock" binding:"required,gte=0"`
}

type UpdateProduct struct {
	Name        *string  `json:"name" binding:"omitempty,min=1"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,gt=0"`
	Stock       *int     `json:"stock" binding:"omitempty,gte=0"`
}

type Store struct {
	mu       sync.RWMutex
	seq      int64
	now      func() time.Time
	users    []User
	products []Product
}

// NewStore returns a store seeded with one sample product.
func NewStore() *Store {
	desc := "This is a sample product"
	return &Store{
		now:      time.Now,
		products: []Product{{ID: "1", Name: "Sample Product", Description: &desc, Price: 99.99, Stock: 10}},
	}
}

// nextID returns a millisecond timestamp id, bumped to stay unique.
func (s *Store) nextID() string {
	id := s.now().UnixMilli()
	if id <= s.seq {
		id = s.seq + 1
	}
	s.seq = id
	return strconv.FormatInt(id, 10)
}

func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users)
}

func (s *Store) User(id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.users, func(u User) bool { return u.ID == id })
	if i < 0 {
		return User{}, ErrNotFound
	}
	return s.users[i], nil
}

func (s *Store) CreateUser(in CreateUser) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := User{
		ID:        s.nextID(),
		Name:      in.Name,
		Email:     in.Email,
		CreatedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	s.users = append(s.users, u)
	return u
}

func (s *Store) UpdateUser(id string, in UpdateUser) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.users, func(u User) bool { return u.ID == id })
	if i < 0 {
		return User{}, ErrNotFound
	}
	if in.Name != nil {
		s.users[i].Name = *in.Name
	}
	if in.Email != nil {
		s.users[i].Email = *in.Email
	}
	return s.users[i], nil
}

func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.users, func(u User) bool { return u.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	s.users = slices.Delete(s.users, i, i+1)
	return nil
}

func (s *Store) Products() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.products)
}

func (s *Store) Product(id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.products, func(p Product) bool { return p.ID == id })
	if i < 0 {
		return Product{}, ErrNotFound
	}
	return s.products[i], nil
}

func (s *Store) CreateProduct(in CreateProduct) Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Product{ID: s.nextID(), Name: in.Name, Description: in.Description, Price: in.Price}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	s.products = append(s.products, p)
	return p
}

func (s *Store) UpdateProduct(id string, in UpdateProduct) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.products, func(p Product) bool { return p.ID == id })
	if i < 0 {
		return Product{}, ErrNotFound
	}
	p := &s.products[i]
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	return *p, nil
}

func (s *Store) DeleteProduct(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.products, func(p Product) bool { return p.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	s.products = slices.Delete(s.products, i, i+1)
	return nil
}
