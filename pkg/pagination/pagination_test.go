package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		page, limit       int
		wantPage, wantLim int
		wantOffset        int
	}{
		{1, 10, 1, 10, 0},
		{3, 10, 3, 10, 20},
		{0, 0, 1, DefaultLimit, 0},
		{-2, 500, 1, MaxLimit, 0},
		{2, 25, 2, 25, 25},
	}
	for _, tc := range cases {
		p := Normalize(tc.page, tc.limit)
		if p.Page != tc.wantPage || p.Limit != tc.wantLim || p.Offset != tc.wantOffset {
			t.Fatalf("Normalize(%d, %d) = %+v", tc.page, tc.limit, p)
		}
	}
}

func TestTotalPages(t *testing.T) {
	cases := map[int64]int{0: 0, 1: 1, 10: 1, 11: 2, 25: 3}
	for total, want := range cases {
		if got := TotalPages(total, 10); got != want {
			t.Fatalf("TotalPages(%d, 10) = %d, want %d", total, got, want)
		}
	}
}

func TestParseReadsPerPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/get_invoices/water?page=2&per_page=5", nil)

	p := Parse(c)
	if p.Page != 2 || p.Limit != 5 || p.Offset != 5 {
		t.Fatalf("unexpected params %+v", p)
	}
}
