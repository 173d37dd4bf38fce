package handler

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Fyongrou/ScoreV1/internal/gradesheet"
	"github.com/Fyongrou/ScoreV1/internal/model"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的 validator 注册成绩相关的校验标签
//
//	score       数值或 A/B/C/D
//	exam_type   期中 / 期末（含英文别名）
//	grade_field 学科成绩列（表头或列名）
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("score", func(fl validator.FieldLevel) bool {
			return gradesheet.ValidScore(fl.Field().String())
		})
		_ = v.RegisterValidation("exam_type", func(fl validator.FieldLevel) bool {
			_, ok := model.ParseExamType(strings.TrimSpace(fl.Field().String()))
			return ok
		})
		_ = v.RegisterValidation("grade_field", func(fl validator.FieldLevel) bool {
			c, ok := gradesheet.LookupColumn(strings.TrimSpace(fl.Field().String()))
			return ok && c.Score
		})
	})
}

// validationDetails 将 validator 错误整理为 "字段:标签" 列表，其他错误原样返回
func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
