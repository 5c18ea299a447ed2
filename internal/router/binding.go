package router

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/lifehub/reminder-engine/internal/model"
)

// registerValidators installs domain value validators on gin's binding
// engine so malformed enums are rejected before the service layer.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return model.Priority(fl.Field().String()).Valid()
	})
	v.RegisterValidation("repeatpattern", func(fl validator.FieldLevel) bool {
		return model.RepeatPattern(fl.Field().String()).Valid()
	})
	v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		return model.Platform(fl.Field().String()).Valid()
	})
	v.RegisterValidation("interaction", func(fl validator.FieldLevel) bool {
		return model.InteractionAction(fl.Field().String()).Valid()
	})
}
