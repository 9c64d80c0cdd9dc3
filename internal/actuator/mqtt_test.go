package actuator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONValue(t *testing.T) {
	tests := []struct {
		attribute string
		value     string
		want      string
	}{
		{attrSetpoint, "21.5", "21.5"},
		{attrValveOpening, "100", "100"},
		{attrExternalTemp, "19.4", "19.4"},
		{attrSystemMode, "heat", `"heat"`},
		{attrSystemMode, "off", `"off"`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, jsonValue(tt.attribute, tt.value), "%s=%s", tt.attribute, tt.value)
	}
}
