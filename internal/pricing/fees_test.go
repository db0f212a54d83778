package pricing

import (
	"math"
	"testing"
)

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestDefaultFeeModel(t *testing.T) {
	f := DefaultFeeModel()
	if f.Percent != 0.029 || f.Flat != 0.30 {
		t.Fatalf("unexpected defaults: %+v", f)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestFeeModel_Validate(t *testing.T) {
	tests := []struct {
		name    string
		model   FeeModel
		wantErr error
	}{
		{"zero fees", FeeModel{}, nil},
		{"negative percent", FeeModel{Percent: -0.01}, ErrInvalidFeePercent},
		{"percent of one", FeeModel{Percent: 1}, ErrInvalidFeePercent},
		{"nan percent", FeeModel{Percent: math.NaN()}, ErrInvalidFeePercent},
		{"negative flat", FeeModel{Percent: 0.029, Flat: -1}, ErrInvalidFeeFlat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.model.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEstimateFee(t *testing.T) {
	f := DefaultFeeModel()
	// 10.00 * 2.9% + 0.30
	if got := f.EstimateFee(10); !almostEqual(got, 0.59, 1e-9) {
		t.Errorf("EstimateFee(10) = %v, want 0.59", got)
	}
	if got := f.EstimateFee(0); !almostEqual(got, 0.30, 1e-9) {
		t.Errorf("EstimateFee(0) = %v, want 0.30", got)
	}
}

func TestNetMRR(t *testing.T) {
	f := DefaultFeeModel()
	tests := []struct {
		name     string
		gross    float64
		quantity int64
		want     float64
	}{
		{"single seat", 10, 1, 10*(1-0.029) - 0.30},
		{"three seats", 30, 3, 30*(1-0.029) - 0.90},
		{"free plan goes negative", 0, 2, -0.60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.NetMRR(tt.gross, tt.quantity); !almostEqual(got, tt.want, 1e-9) {
				t.Errorf("NetMRR(%v, %d) = %v, want %v", tt.gross, tt.quantity, got, tt.want)
			}
		})
	}
}

func TestToMajorAndLineGross(t *testing.T) {
	if got := ToMajor(95); !almostEqual(got, 0.95, 1e-12) {
		t.Errorf("ToMajor(95) = %v", got)
	}
	if got := ToMajor(0); got != 0 {
		t.Errorf("ToMajor(0) = %v", got)
	}
	if got := LineGross(1000, 3); got != 30 {
		t.Errorf("LineGross(1000, 3) = %v, want 30", got)
	}
}

func TestAverage(t *testing.T) {
	if got := Average(3.0, 2); got != 1.5 {
		t.Errorf("Average(3, 2) = %v, want 1.5", got)
	}
	if got := Average(3.0, 0); got != 0 {
		t.Errorf("Average(3, 0) = %v, want 0", got)
	}
}
