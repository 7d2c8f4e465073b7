package backoffice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPath(t *testing.T) {
	assert.Equal(t, "/tables/T12/close", path("tables", "T12", "close"))
	assert.Equal(t, "/reservations/a%2Fb/per-diems", path("reservations", "a/b", "per-diems"))
}

func TestFilterKeysHaveFixedShape(t *testing.T) {
	assert.Equal(t, "tables(list,,)", TableFilter{}.key().String())
	assert.Equal(t, "tables(list,patio,free)", TableFilter{Area: "patio", Status: "free"}.key().String())
	assert.Equal(t, "sales(list,open,,)", SaleFilter{Status: "open"}.key().String())
	assert.Equal(t, "reservations(list,,2026-03-01,,1,20)",
		ReservationFilter{From: "2026-03-01", Page: 1, PageSize: 20}.key().String())
	assert.Equal(t, "products(list,c1,true)", ProductFilter{CategoryID: "c1", ActiveOnly: true}.key().String())

	q := ReservationFilter{Status: "confirmed", Page: 3}.query()
	assert.Equal(t, "page=3&status=confirmed", q.Encode())
}
