package api

import (
	"reflect"
	"strings"
	"sync"

	"api_pos/internal/sales"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validatorsOnce sync.Once

// registerValidators reports json field names in validation errors and adds
// the payment_method tag.
func registerValidators(logger *zap.Logger) {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logger.Warn("gin validator engine is not go-playground/validator")
			return
		}

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})

		if err := v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
			_, err := sales.NormalizePaymentMethod(fl.Field().String())
			return err == nil
		}); err != nil {
			logger.Error("failed to register payment_method validator", zap.Error(err))
		}
	})
}
