package offers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sagwira/reuni-engine/internal/fees"
	"github.com/sagwira/reuni-engine/internal/listings"
)

func offerRouter(t *testing.T) (*gin.Engine, *listings.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ls := listings.NewMemoryStore()
	svc := NewService(NewMemoryStore(), ls, fees.DefaultSchedule(), nil)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/v1"))
	return r, ls
}

func postOffer(t *testing.T, r *gin.Engine, listingID string, amountPence int64) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"listingId":"` + listingID + `","buyerId":"buyer-1","amountPence":` + strconv.FormatInt(amountPence, 10) + `}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/offers", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateHandler_OutOfBoundsCarriesLimits(t *testing.T) {
	r, ls := offerRouter(t)
	l := listings.NewListing("seller-1", "Reunion Tour", 10000, 1)
	if err := ls.Create(t.Context(), l); err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	// Below the 50% floor.
	w := postOffer(t, r, l.ID, 4000)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] != "validation_failed" {
		t.Errorf("error = %v, want validation_failed", body["error"])
	}
	if body["minOfferPence"].(float64) != 5000 {
		t.Errorf("minOfferPence = %v, want 5000", body["minOfferPence"])
	}
	if body["maxOfferPence"].(float64) != 11000 {
		t.Errorf("maxOfferPence = %v, want 11000", body["maxOfferPence"])
	}

	// Above the 110% ceiling: same structured bounds.
	w = postOffer(t, r, l.ID, 12000)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body = map[string]any{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["minOfferPence"].(float64) != 5000 || body["maxOfferPence"].(float64) != 11000 {
		t.Errorf("bounds = %v/%v, want 5000/11000", body["minOfferPence"], body["maxOfferPence"])
	}

	// A valid offer still lands.
	w = postOffer(t, r, l.ID, 6000)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
}
