package handler

import (
	"errors"
	"net/http"

	"shopease-backend/internal/model"
	"shopease-backend/pkg/database"
	"shopease-backend/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/ttacon/libphonenumber"
	"go.uber.org/zap"
)

var validate = validator.New()

// CustomerRequest defines the structure for customer creation requests
type CustomerRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required"`
	CountryCode string `json:"country_code"`
	City        string `json:"city" validate:"required"`
}

// CreateCustomer validates and creates a customer. Email syntax and phone
// format are checked before the write so callers get a precise error instead
// of an opaque constraint failure from the database.
func CreateCustomer(c echo.Context) error {
	log := logger.FromContext(c)

	var req CustomerRequest
	if err := c.Bind(&req); err != nil {
		log.Error("invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	if err := validate.Struct(&req); err != nil {
		log.Warn("customer validation failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	phone, err := normalizePhone(req.Phone, req.CountryCode)
	if err != nil {
		log.Warn("invalid phone number", zap.String("phone", req.Phone), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid phone number"})
	}

	customer := model.Customer{
		Name:  req.Name,
		Email: req.Email,
		Phone: phone,
		City:  req.City,
	}
	if err := database.GetDB().WithContext(c.Request().Context()).Create(&customer).Error; err != nil {
		// Uniqueness on email/phone surfaces here.
		translated := database.TranslateError(err)
		var cv *model.ConstraintViolationError
		if errors.As(translated, &cv) {
			return c.JSON(http.StatusConflict, echo.Map{"error": cv.Error()})
		}
		return writeError(c, log, translated)
	}

	log.Info("customer created",
		zap.Uint("customer_id", customer.ID),
		zap.String("email", customer.Email))
	return c.JSON(http.StatusCreated, customer)
}

// ListCustomers returns all customers
func ListCustomers(c echo.Context) error {
	log := logger.FromContext(c)

	var customers []model.Customer
	if err := database.GetDB().WithContext(c.Request().Context()).Find(&customers).Error; err != nil {
		return writeError(c, log, database.TranslateError(err))
	}
	return c.JSON(http.StatusOK, customers)
}

// normalizePhone parses and validates a phone number, returning its E.164
// form so the uniqueness constraint compares like with like.
func normalizePhone(phone, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = "US"
	}
	p, err := libphonenumber.Parse(phone, countryCode)
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", &model.ConstraintViolationError{
			Constraint: "customers_phone_check",
			Detail:     "phone number is not valid",
		}
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}
