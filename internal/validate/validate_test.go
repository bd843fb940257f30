package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"spark-go/internal/models"
)

func TestEmail(t *testing.T) {
	assert.Nil(t, Email("a@example.com"))
	assert.NotNil(t, Email(""))
	assert.NotNil(t, Email("not-an-email"))
	assert.NotNil(t, Email("a b@example.com"))
}

func TestPassword(t *testing.T) {
	assert.Nil(t, Password("123456"))
	assert.NotNil(t, Password("12345"))
}

func TestAge(t *testing.T) {
	assert.Nil(t, Age(18, 18, 100))
	assert.Nil(t, Age(100, 18, 100))
	assert.NotNil(t, Age(17, 18, 100))
	assert.NotNil(t, Age(101, 18, 100))
}

func TestGenderValue(t *testing.T) {
	assert.Nil(t, GenderValue("gender", models.GenderMale))
	assert.Nil(t, GenderValue("gender", models.GenderFemale))
	assert.Nil(t, GenderValue("gender", ""))

	err := GenderValue("lookingFor", "unknown")
	if assert.NotNil(t, err) {
		assert.Equal(t, "lookingFor", err.Field)
	}
}

func TestAgeRange(t *testing.T) {
	assert.Nil(t, AgeRange(20, 35))
	assert.Nil(t, AgeRange(20, 20))
	assert.NotNil(t, AgeRange(35, 20))
}

func TestCoordinates(t *testing.T) {
	assert.Nil(t, Coordinates(116.4, 39.9))
	assert.Nil(t, Coordinates(-180, 90))
	assert.NotNil(t, Coordinates(181, 0))
	assert.NotNil(t, Coordinates(0, -91))
}
