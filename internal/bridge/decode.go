package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"airguard/internal/model"
)

var ErrMalformedSample = errors.New("malformed sample")

var validate = validator.New()

type rawSample struct {
	Gas   *float64 `validate:"required,gt=0"`
	Temp  *float64 `validate:"required,gte=-40,lte=85"`
	Hum   *float64 `validate:"required,gte=0,lte=100"`
	Press *float64 `validate:"required,gt=0"`
}

// DecodeSample parses a JSON object into a sample. Payloads that are a JSON
// string holding the object are unwrapped first. Empty payloads and null
// return nil, nil.
func DecodeSample(data []byte) (*model.Sample, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSample, err)
		}
		return DecodeSample([]byte(inner))
	}
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSample, err)
	}
	return SampleFromMap(obj)
}

// SampleFromMap reads the gas, temp, hum and press fields (with common
// aliases) and validates them against the sensor's operating range.
func SampleFromMap(obj map[string]any) (*model.Sample, error) {
	fields := make(map[string]any, len(obj))
	for k, v := range obj {
		fields[strings.ToLower(strings.TrimSpace(k))] = v
	}
	var raw rawSample
	var err error
	if raw.Gas, err = numberField(fields, "gas", "gas_ohms", "gas_resistance", "resistance"); err != nil {
		return nil, err
	}
	if raw.Temp, err = numberField(fields, "temp", "temperature", "temperature_c"); err != nil {
		return nil, err
	}
	if raw.Hum, err = numberField(fields, "hum", "humidity", "humidity_pct"); err != nil {
		return nil, err
	}
	if raw.Press, err = numberField(fields, "press", "pressure", "pressure_hpa"); err != nil {
		return nil, err
	}
	if err := validate.Struct(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSample, err)
	}
	return &model.Sample{
		GasOhms:      *raw.Gas,
		TemperatureC: *raw.Temp,
		HumidityPct:  *raw.Hum,
		PressureHPa:  *raw.Press,
	}, nil
}

func numberField(fields map[string]any, keys ...string) (*float64, error) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrMalformedSample, k, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: field %s is not finite", ErrMalformedSample, k)
		}
		return &f, nil
	}
	return nil, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
