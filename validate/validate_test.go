package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAddress struct {
	Street string `json:"street" validate:"required"`
	City   string `json:"city" validate:"required"`
}

type testLease struct {
	UnitID    string      `json:"unitId" validate:"required"`
	StartDate string      `json:"startDate" validate:"required,date"`
	EndDate   string      `json:"endDate" validate:"required,date,after=StartDate"`
	Rent      float64     `json:"rentAmount" validate:"gte=0"`
	Status    string      `json:"status" validate:"required,oneof=PENDING ACTIVE"`
	Name      string      `json:"name" validate:"omitempty,max=5"`
	Address   testAddress `json:"address"`
}

func validLease() testLease {
	return testLease{
		UnitID:    "u1",
		StartDate: "2025-01-01",
		EndDate:   "2025-12-31T00:00:00Z",
		Rent:      1200,
		Status:    "ACTIVE",
		Address:   testAddress{Street: "1 Main", City: "Lagos"},
	}
}

func fieldErrors(t *testing.T, err error) FieldErrors {
	t.Helper()
	var fe FieldErrors
	require.True(t, errors.As(err, &fe), "expected FieldErrors, got %v", err)
	return fe
}

func TestValidStructPasses(t *testing.T) {
	require.NoError(t, New().Struct(validLease()))
}

func TestFieldNamesUseJSONTags(t *testing.T) {
	in := validLease()
	in.UnitID = ""
	in.Rent = -1
	in.Status = "GONE"
	in.Address.City = ""

	fe := fieldErrors(t, New().Struct(in))
	assert.Equal(t, "unitId is required", fe["unitId"])
	assert.Equal(t, "rentAmount must be greater than or equal to 0", fe["rentAmount"])
	assert.Equal(t, "status must be one of [PENDING ACTIVE]", fe["status"])
	assert.Equal(t, "city is required", fe["address.city"])
	assert.Len(t, fe, 4)
}

func TestEndDateMustFollowStartDate(t *testing.T) {
	in := validLease()
	in.EndDate = "2024-06-01"

	fe := fieldErrors(t, New().Struct(in))
	assert.Equal(t, "endDate must be after startDate", fe["endDate"])

	in.EndDate = in.StartDate
	fe = fieldErrors(t, New().Struct(in))
	assert.Contains(t, fe, "endDate")
}

func TestMalformedDate(t *testing.T) {
	in := validLease()
	in.StartDate = "01/02/2025"

	fe := fieldErrors(t, New().Struct(in))
	assert.Contains(t, fe["startDate"], "must be a date")
	// A bad start date is reported once, on the start field.
	assert.NotContains(t, fe, "endDate")
}

func TestStringLengthMessage(t *testing.T) {
	in := validLease()
	in.Name = "toolongname"

	fe := fieldErrors(t, New().Struct(in))
	assert.Equal(t, "name must be less than 5 characters", fe["name"])
}

func TestNonStructIsNotFieldErrors(t *testing.T) {
	err := New().Struct(42)
	require.Error(t, err)
	var fe FieldErrors
	assert.False(t, errors.As(err, &fe))
}

func TestFieldErrorsMessageIsSorted(t *testing.T) {
	fe := FieldErrors{"b": "b bad", "a": "a bad"}
	assert.Equal(t, "validation failed: a: a bad, b: b bad", fe.Error())
}

func TestParseDate(t *testing.T) {
	_, ok := ParseDate("2025-03-04")
	assert.True(t, ok)
	_, ok = ParseDate("2025-03-04T10:00:00+01:00")
	assert.True(t, ok)
	_, ok = ParseDate("yesterday")
	assert.False(t, ok)
}

func TestVar(t *testing.T) {
	v := New()
	assert.NoError(t, v.Var("a@b.com", "required,email"))
	assert.Error(t, v.Var("nope", "required,email"))
}
