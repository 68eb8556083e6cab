package dynamicfields

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/lifecycle"
	apperrors "github.com/fleetcompliance/platform/pkg/errors"
)

func TestCreateDefinition_RoleDenied(t *testing.T) {
	svc := NewService(nil)
	tenantID := "tenant-1"

	_, err := svc.CreateDefinition(nil, lifecycle.Actor{Role: domain.RoleAgent}, &tenantID, DefinitionInput{
		EntityKind: domain.DynamicFieldEntityVehicle, FieldKey: "region", Name: "Region", DataType: domain.DynamicFieldText,
	})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestCreateDefinition_GlobalTemplateRequiresSuperAdmin(t *testing.T) {
	svc := NewService(nil)

	_, err := svc.CreateDefinition(nil, lifecycle.Actor{Role: domain.RoleAdmin}, nil, DefinitionInput{
		EntityKind: domain.DynamicFieldEntityVehicle, FieldKey: "region", Name: "Region", DataType: domain.DynamicFieldText,
	})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestCreateDefinition_ChoiceRequiresChoices(t *testing.T) {
	svc := NewService(nil)
	tenantID := "tenant-1"

	_, err := svc.CreateDefinition(nil, lifecycle.Actor{Role: domain.RoleAdmin}, &tenantID, DefinitionInput{
		EntityKind: domain.DynamicFieldEntityVehicle, FieldKey: "fuel", Name: "Fuel Type", DataType: domain.DynamicFieldChoice,
	})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestBuildValue_Text(t *testing.T) {
	def := &domain.DynamicFieldDefinition{ID: "def-1", FieldKey: "notes", DataType: domain.DynamicFieldText}

	v, err := buildValue(def, domain.DynamicFieldEntityVehicle, "veh-1", "a note")
	require.NoError(t, err)
	assert.Equal(t, "a note", *v.ValueText)
}

func TestBuildValue_TextTooLong(t *testing.T) {
	def := &domain.DynamicFieldDefinition{ID: "def-1", FieldKey: "notes", DataType: domain.DynamicFieldText}
	longText := make([]byte, maxTextLength+1)
	for i := range longText {
		longText[i] = 'a'
	}

	_, err := buildValue(def, domain.DynamicFieldEntityVehicle, "veh-1", string(longText))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestBuildValue_Number(t *testing.T) {
	def := &domain.DynamicFieldDefinition{ID: "def-1", FieldKey: "mileage", DataType: domain.DynamicFieldNumber}

	v, err := buildValue(def, domain.DynamicFieldEntityVehicle, "veh-1", 12345.5)
	require.NoError(t, err)
	assert.Equal(t, 12345.5, *v.ValueNumber)
}

func TestBuildValue_NumberWrongType(t *testing.T) {
	def := &domain.DynamicFieldDefinition{ID: "def-1", FieldKey: "mileage", DataType: domain.DynamicFieldNumber}

	_, err := buildValue(def, domain.DynamicFieldEntityVehicle, "veh-1", "not a number")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestBuildValue_DateFromString(t *testing.T) {
	def := &domain.DynamicFieldDefinition{ID: "def-1", FieldKey: "inspected_on", DataType: domain.DynamicFieldDate}

	v, err := buildValue(def, domain.DynamicFieldEntityVehicle, "veh-1", "2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), *v.ValueDate)
}

func TestBuildValue_DateInvalid(t *testing.T) {
	def := &domain.DynamicFieldDefinition{ID: "def-1", FieldKey: "inspected_on", DataType: domain.DynamicFieldDate}

	_, err := buildValue(def, domain.DynamicFieldEntityVehicle, "veh-1", "not-a-date")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestBuildValue_Bool(t *testing.T) {
	def := &domain.DynamicFieldDefinition{ID: "def-1", FieldKey: "fleet_managed", DataType: domain.DynamicFieldBool}

	v, err := buildValue(def, domain.DynamicFieldEntityVehicle, "veh-1", true)
	require.NoError(t, err)
	assert.True(t, *v.ValueBool)
}

func TestBuildValue_Choice(t *testing.T) {
	def := &domain.DynamicFieldDefinition{ID: "def-1", FieldKey: "fuel", DataType: domain.DynamicFieldChoice, Choices: []string{"petrol", "diesel", "electric"}}

	v, err := buildValue(def, domain.DynamicFieldEntityVehicle, "veh-1", "diesel")
	require.NoError(t, err)
	assert.Equal(t, "diesel", *v.ValueChoice)
}

func TestBuildValue_ChoiceNotInList(t *testing.T) {
	def := &domain.DynamicFieldDefinition{ID: "def-1", FieldKey: "fuel", DataType: domain.DynamicFieldChoice, Choices: []string{"petrol", "diesel"}}

	_, err := buildValue(def, domain.DynamicFieldEntityVehicle, "veh-1", "hydrogen")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestBuildValue_RequiredMissing(t *testing.T) {
	def := &domain.DynamicFieldDefinition{ID: "def-1", FieldKey: "region", DataType: domain.DynamicFieldText, Required: true, IsActive: true}

	_, err := buildValue(def, domain.DynamicFieldEntityVehicle, "veh-1", nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestBuildValue_NotRequiredMissingIsOK(t *testing.T) {
	def := &domain.DynamicFieldDefinition{ID: "def-1", FieldKey: "region", DataType: domain.DynamicFieldText, Required: false}

	v, err := buildValue(def, domain.DynamicFieldEntityVehicle, "veh-1", nil)
	require.NoError(t, err)
	assert.Nil(t, v.ValueText)
}
