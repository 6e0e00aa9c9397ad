package service

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
)

func ptr(v int64) *int64 { return &v }

func TestNormalize(t *testing.T) {
	cases := []struct {
		name      string
		lines     []domain.OrderLine
		want      domain.NormalizedRequest
		wantErr   error
		wantLine  int
		wantField string
	}{
		{name: "nil", lines: nil, want: domain.NormalizedRequest{}},
		{name: "single", lines: []domain.OrderLine{line(1, 3)}, want: domain.NormalizedRequest{1: 3}},
		{
			name:  "merges duplicates",
			lines: []domain.OrderLine{line(1, 3), line(2, 1), line(1, 2)},
			want:  domain.NormalizedRequest{1: 5, 2: 1},
		},
		{
			name:      "missing product id",
			lines:     []domain.OrderLine{line(1, 1), {Quantity: ptr(1)}},
			wantErr:   domain.ErrInvalidProductID,
			wantLine:  1,
			wantField: "product_id",
		},
		{
			name:      "zero quantity",
			lines:     []domain.OrderLine{line(1, 0)},
			wantErr:   domain.ErrInvalidQuantity,
			wantField: "quantity",
		},
		{
			name:      "negative quantity",
			lines:     []domain.OrderLine{line(1, -4)},
			wantErr:   domain.ErrInvalidQuantity,
			wantField: "quantity",
		},
		{
			name:      "missing quantity",
			lines:     []domain.OrderLine{{ProductID: ptr(7)}},
			wantErr:   domain.ErrInvalidQuantity,
			wantField: "quantity",
		},
		{
			name:      "first invalid line wins",
			lines:     []domain.OrderLine{line(1, 1), line(2, 0), {Quantity: ptr(1)}},
			wantErr:   domain.ErrInvalidQuantity,
			wantLine:  1,
			wantField: "quantity",
		},
		{
			name:      "product id checked before quantity",
			lines:     []domain.OrderLine{{}},
			wantErr:   domain.ErrInvalidProductID,
			wantField: "product_id",
		},
		{
			name:      "merged total overflows",
			lines:     []domain.OrderLine{line(1, math.MaxInt32), line(1, 1)},
			wantErr:   domain.ErrInvalidQuantity,
			wantLine:  1,
			wantField: "quantity",
		},
		{
			name:      "huge quantity",
			lines:     []domain.OrderLine{line(1, math.MaxInt64)},
			wantErr:   domain.ErrInvalidQuantity,
			wantField: "quantity",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.lines)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				var ve *domain.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected *ValidationError, got %T", err)
				}
				if ve.Line != tc.wantLine || ve.Field != tc.wantField {
					t.Errorf("expected line %d field %q, got line %d field %q", tc.wantLine, tc.wantField, ve.Line, ve.Field)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestNormalizedRequest_ProductIDsSorted(t *testing.T) {
	req := domain.NormalizedRequest{9: 1, 3: 2, 5: 1}
	if got := req.ProductIDs(); !reflect.DeepEqual(got, []int64{3, 5, 9}) {
		t.Errorf("expected [3 5 9], got %v", got)
	}
	if req.TotalQuantity() != 4 {
		t.Errorf("expected total 4, got %d", req.TotalQuantity())
	}
}
