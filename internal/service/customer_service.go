package service

import (
	"context"
	"strings"

	"backoffice-api/internal/models"
	"backoffice-api/internal/util"

	"go.uber.org/zap"
)

// CustomerService manages customers
type CustomerService struct {
	store  CustomerStore
	logger *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(store CustomerStore) *CustomerService {
	return &CustomerService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CustomerRequest carries the editable fields of a customer
type CustomerRequest struct {
	Name          string  `json:"name" binding:"required,max=100"`
	Email         string  `json:"email" binding:"required,email"`
	ContactNumber *string `json:"contactNumber" binding:"omitempty,max=20"`
	Address       *string `json:"address" binding:"omitempty,max=200"`
}

func (r *CustomerRequest) toCustomer() (*models.Customer, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, models.Validationf("customer name is required")
	}
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return nil, models.Validationf("customer email is required")
	}
	return &models.Customer{
		Name:          name,
		Email:         email,
		ContactNumber: r.ContactNumber,
		Address:       r.Address,
	}, nil
}

func (s *CustomerService) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return s.store.GetCustomers(ctx)
}

func (s *CustomerService) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return s.store.GetCustomerByID(ctx, id)
}

// CreateCustomer adds a customer. Emails are unique, ignoring case.
func (s *CustomerService) CreateCustomer(ctx context.Context, req *CustomerRequest) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.CreateCustomer")
	defer span.End()

	customer, err := req.toCustomer()
	if err != nil {
		return nil, err
	}

	exists, err := s.store.CustomerExistsByEmail(ctx, customer.Email, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.ErrDuplicateEmail
	}

	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	s.logger.Info("Customer created", zap.Int64("customer_id", customer.ID))
	return customer, nil
}

func (s *CustomerService) UpdateCustomer(ctx context.Context, id int64, req *CustomerRequest) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.UpdateCustomer")
	defer span.End()

	customer, err := req.toCustomer()
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetCustomerByID(ctx, id); err != nil {
		return nil, err
	}

	exists, err := s.store.CustomerExistsByEmail(ctx, customer.Email, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.ErrDuplicateEmail
	}

	customer.ID = id
	if err := s.store.UpdateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// DeleteCustomer removes a customer without orders
func (s *CustomerService) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Customer deleted", zap.Int64("customer_id", id))
	return nil
}
