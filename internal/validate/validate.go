// Package validate contains explicit input validators for the API
// surface. Validators return structured *Error values that handlers map
// to 400 responses; they are deliberately decoupled from the storage
// layer.
package validate

import (
	"fmt"
	"regexp"

	"spark-go/internal/models"
)

// Error 是一个结构化的校验错误，指明哪个字段因何被拒绝。
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewError creates a validation error for the given field.
func NewError(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Email checks basic email shape.
func Email(email string) *Error {
	if email == "" {
		return NewError("email", "邮箱不能为空")
	}
	if !emailPattern.MatchString(email) {
		return NewError("email", "邮箱格式无效")
	}
	return nil
}

// Password enforces the minimum password length.
func Password(password string) *Error {
	if len(password) < 6 {
		return NewError("password", "密码长度至少为6个字符")
	}
	return nil
}

// Age checks the configured age bound.
func Age(age, minAge, maxAge int) *Error {
	if age < minAge {
		return NewError("age", fmt.Sprintf("年龄必须不小于 %d 岁", minAge))
	}
	if maxAge > 0 && age > maxAge {
		return NewError("age", fmt.Sprintf("年龄必须不大于 %d 岁", maxAge))
	}
	return nil
}

// GenderValue checks a gender enum value ("" is allowed for optional fields).
func GenderValue(field string, g models.Gender) *Error {
	switch g {
	case "", models.GenderMale, models.GenderFemale:
		return nil
	default:
		return NewError(field, "取值必须是 male 或 female")
	}
}

// AgeRange checks that a preference age range is coherent.
func AgeRange(minAge, maxAge int) *Error {
	if minAge > maxAge {
		return NewError("preferences", "最小年龄不能大于最大年龄")
	}
	return nil
}

// Coordinates checks a longitude/latitude pair.
func Coordinates(longitude, latitude float64) *Error {
	if longitude < -180 || longitude > 180 {
		return NewError("location", "经度必须在 -180 到 180 之间")
	}
	if latitude < -90 || latitude > 90 {
		return NewError("location", "纬度必须在 -90 到 90 之间")
	}
	return nil
}
