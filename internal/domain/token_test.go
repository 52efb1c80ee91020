package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTokenRecord_MergeKeepsExistingOnZero(t *testing.T) {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	base := TokenRecord{
		Mint:      "m1",
		Name:      "Alpha",
		Symbol:    "ALP",
		Price:     decimal.RequireFromString("1.5"),
		CreatedAt: &created,
		Twitter:   "@alpha",
	}

	base.Merge(&TokenRecord{Mint: "m1", Price: decimal.RequireFromString("2.0")})

	if base.Name != "Alpha" || base.Symbol != "ALP" || base.Twitter != "@alpha" {
		t.Errorf("zero incoming fields clobbered existing values: %+v", base)
	}
	if !base.Price.Equal(decimal.RequireFromString("2.0")) {
		t.Errorf("price not updated: %s", base.Price)
	}
}

func TestTokenRecord_MergeNeverOverwritesCreatedAt(t *testing.T) {
	first := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	base := TokenRecord{Mint: "m1", CreatedAt: &first}
	base.Merge(&TokenRecord{Mint: "m1", CreatedAt: &later})

	if !base.CreatedAt.Equal(first) {
		t.Errorf("CreatedAt overwritten: %v", base.CreatedAt)
	}

	// But a record that never had one takes the incoming value.
	empty := TokenRecord{Mint: "m2"}
	empty.Merge(&TokenRecord{Mint: "m2", CreatedAt: &later})
	if empty.CreatedAt == nil || !empty.CreatedAt.Equal(later) {
		t.Errorf("CreatedAt not filled in: %v", empty.CreatedAt)
	}
}

func TestTokenRecord_GraduatedIsSticky(t *testing.T) {
	base := TokenRecord{Mint: "m1", Graduated: true}
	base.Merge(&TokenRecord{Mint: "m1"})
	if !base.Graduated {
		t.Error("graduated flag dropped on merge")
	}
}

func TestTokenRecord_CloneIsIndependent(t *testing.T) {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	orig := TokenRecord{Mint: "m1", CreatedAt: &created}

	clone := orig.Clone()
	*clone.CreatedAt = clone.CreatedAt.Add(time.Hour)

	if !orig.CreatedAt.Equal(created) {
		t.Error("mutating the clone changed the original")
	}
}

func TestAction_Valid(t *testing.T) {
	if !ActionBuy.Valid() || !ActionSell.Valid() {
		t.Error("buy/sell should be valid")
	}
	if Action("stake").Valid() || Action("").Valid() {
		t.Error("unknown actions should be invalid")
	}
}
