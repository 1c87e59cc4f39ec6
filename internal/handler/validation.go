package handler

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
)

var registerOnce sync.Once

// RegisterValidators 在 gin 的默认 validator 上注册习惯相关的规则
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("habit_type", func(fl validator.FieldLevel) bool {
			return habit.HabitType(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("frequency_kind", func(fl validator.FieldLevel) bool {
			return habit.FrequencyKind(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
			d := fl.Field().Int()
			return d >= 0 && d <= 6
		})
		_ = v.RegisterValidation("datekey", func(fl validator.FieldLevel) bool {
			_, err := habit.ParseDateKey(fl.Field().String())
			return err == nil
		})
	})
}
