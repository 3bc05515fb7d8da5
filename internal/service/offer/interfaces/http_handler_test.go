package interfaces

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"merchdash/internal/pkg/metrics"
	"merchdash/internal/service/offer/application"
	"merchdash/internal/service/offer/domain"
	"merchdash/internal/service/offer/infrastructure"
	"merchdash/internal/testutil"
)

type dashboard struct {
	srv    *httptest.Server
	client *http.Client
	offers *infrastructure.GormOfferRepository
	ranges *infrastructure.GormRangeRepository
}

func newDashboard(t *testing.T) *dashboard {
	t.Helper()
	db := testutil.NewSQLiteDB(t, infrastructure.GormConfig())
	require.NoError(t, infrastructure.AutoMigrate(db))

	tracer := noop.NewTracerProvider().Tracer("test")
	offers := infrastructure.NewGormOfferRepository(db)
	ranges := infrastructure.NewGormRangeRepository(db)
	wizard := application.NewWizardService(offers, ranges, infrastructure.NewMemoryDraftStore(time.Hour),
		infrastructure.NoopOfferPublisher{}, metrics.NewWizardMetrics(prometheus.NewRegistry()), tracer)

	mux := http.NewServeMux()
	NewOfferHandler(wizard, application.NewOfferService(offers, tracer), false).RegisterRoutes(mux)
	NewRangeHandler(application.NewRangeService(ranges, tracer)).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		// 断言 302 本身，而不是跟随跳转
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return &dashboard{srv: srv, client: client, offers: offers, ranges: ranges}
}

func (d *dashboard) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := d.client.Get(d.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (d *dashboard) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := d.client.PostForm(d.srv.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func assertRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, location, resp.Header.Get("Location"))
}

func (d *dashboard) allProducts(t *testing.T) *domain.Range {
	t.Helper()
	rng := &domain.Range{Name: "All products", IncludesAllProducts: true}
	require.NoError(t, d.ranges.Create(context.Background(), rng))
	return rng
}

func TestPagesExist(t *testing.T) {
	d := newDashboard(t)
	for _, path := range []string{"/dashboard/offers/", "/dashboard/offers/metadata/"} {
		resp, _ := d.get(t, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestOfferCreation_HappyPath(t *testing.T) {
	d := newDashboard(t)
	rng := d.allProducts(t)
	rangeID := strconv.FormatInt(rng.ID, 10)

	resp, _ := d.post(t, "/dashboard/offers/metadata/", url.Values{
		"name":        {"my offer"},
		"description": {"offers are nice"},
		"start_date":  {"2012-01-01"},
		"end_date":    {"2013-01-01"},
	})
	assertRedirect(t, resp, "/dashboard/offers/condition/")

	resp, _ = d.post(t, "/dashboard/offers/condition/", url.Values{
		"range": {rangeID},
		"type":  {"Count"},
		"value": {"3"},
	})
	assertRedirect(t, resp, "/dashboard/offers/benefit/")

	resp, _ = d.post(t, "/dashboard/offers/benefit/", url.Values{
		"range": {rangeID},
		"type":  {"Multibuy"},
		"value": {"1"},
	})
	assertRedirect(t, resp, "/dashboard/offers/preview/")

	resp, body := d.get(t, "/dashboard/offers/preview/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "my offer")
	assert.Contains(t, body, "Cheapest product from All products is free")

	resp, _ = d.post(t, "/dashboard/offers/preview/", url.Values{})
	assertRedirect(t, resp, "/dashboard/offers/")

	offers, err := d.offers.List(context.Background())
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "my offer", offers[0].Name)

	_, body = d.get(t, "/dashboard/offers/")
	assert.Contains(t, body, "my offer")
	assert.Contains(t, body, "Basket includes 3 item(s) from All products")
}

func TestOfferUpdating_HappyPath(t *testing.T) {
	d := newDashboard(t)
	rng := d.allProducts(t)
	rangeID := strconv.FormatInt(rng.ID, 10)

	offer := &domain.Offer{
		Name:        "my offer",
		Description: "something",
		StartDate:   time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC),
		Condition:   &domain.Condition{RangeID: rng.ID, Type: domain.ConditionCount, Value: decimal.NewFromInt(3)},
		Benefit:     &domain.Benefit{RangeID: rng.ID, Type: domain.BenefitMultibuy, Value: decimal.NewFromInt(1)},
	}
	require.NoError(t, d.offers.Create(context.Background(), offer))
	base := fmt.Sprintf("/dashboard/offers/%d/", offer.ID)

	resp, body := d.get(t, base+"metadata/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "my offer")

	resp, _ = d.post(t, base+"metadata/", url.Values{
		"name":        {"my new offer"},
		"description": {"something"},
		"start_date":  {"2012-01-01"},
		"end_date":    {"2013-01-01"},
	})
	assertRedirect(t, resp, base+"condition/")

	resp, _ = d.post(t, base+"condition/", url.Values{"range": {rangeID}, "type": {"Count"}, "value": {"3"}})
	assertRedirect(t, resp, base+"benefit/")

	resp, _ = d.post(t, base+"benefit/", url.Values{"range": {rangeID}, "type": {"Multibuy"}, "value": {"1"}})
	assertRedirect(t, resp, base+"preview/")

	resp, body = d.get(t, base+"preview/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "my new offer")

	resp, _ = d.post(t, base+"preview/", url.Values{})
	assertRedirect(t, resp, "/dashboard/offers/")

	got, err := d.offers.FindByID(context.Background(), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, "my new offer", got.Name)
}

func TestWizard_InvalidSubmissionRerendersForm(t *testing.T) {
	d := newDashboard(t)

	resp, body := d.post(t, "/dashboard/offers/metadata/", url.Values{
		"name":       {"half done"},
		"start_date": {"2012-01-01"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "This field is required.")
	assert.Contains(t, body, `value="half done"`)

	resp, _ = d.get(t, "/dashboard/offers/preview/")
	assertRedirect(t, resp, "/dashboard/offers/metadata/")
}

func TestWizard_ConfirmIncompleteShowsErrors(t *testing.T) {
	d := newDashboard(t)

	resp, body := d.post(t, "/dashboard/offers/preview/", url.Values{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "have not been provided yet")

	offers, err := d.offers.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestWizard_SessionCookie(t *testing.T) {
	d := newDashboard(t)

	resp, _ := d.get(t, "/dashboard/offers/metadata/")
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookieName {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, "/dashboard/", session.Path)

	// 已有会话时不会重新签发
	resp, _ = d.get(t, "/dashboard/offers/metadata/")
	assert.Empty(t, resp.Cookies())
}

func TestOfferEditAndDelete_NotFound(t *testing.T) {
	d := newDashboard(t)

	resp, _ := d.get(t, "/dashboard/offers/404/metadata/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = d.post(t, "/dashboard/offers/404/delete/", url.Values{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = d.get(t, "/dashboard/offers/abc/metadata/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOfferDelete(t *testing.T) {
	d := newDashboard(t)
	rng := d.allProducts(t)
	offer := &domain.Offer{
		Name:      "doomed",
		StartDate: time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC),
		Condition: &domain.Condition{RangeID: rng.ID, Type: domain.ConditionValue, Value: decimal.NewFromInt(50)},
		Benefit:   &domain.Benefit{RangeID: rng.ID, Type: domain.BenefitPercentage, Value: decimal.NewFromInt(10)},
	}
	require.NoError(t, d.offers.Create(context.Background(), offer))

	resp, _ := d.post(t, fmt.Sprintf("/dashboard/offers/%d/delete/", offer.ID), url.Values{})
	assertRedirect(t, resp, "/dashboard/offers/")

	_, err := d.offers.FindByID(context.Background(), offer.ID)
	assert.ErrorIs(t, err, domain.ErrOfferNotFound)
}

func TestWizard_Cancel(t *testing.T) {
	d := newDashboard(t)

	resp, _ := d.post(t, "/dashboard/offers/metadata/", url.Values{
		"name": {"my offer"}, "start_date": {"2012-01-01"}, "end_date": {"2013-01-01"},
	})
	assertRedirect(t, resp, "/dashboard/offers/condition/")

	resp, _ = d.post(t, "/dashboard/offers/cancel/", url.Values{})
	assertRedirect(t, resp, "/dashboard/offers/")

	resp, _ = d.get(t, "/dashboard/offers/condition/")
	assertRedirect(t, resp, "/dashboard/offers/metadata/")
}

func TestRangeHandler(t *testing.T) {
	d := newDashboard(t)

	resp, err := d.client.Post(d.srv.URL+"/dashboard/ranges/", "application/json",
		strings.NewReader(`{"name":"Books","included_product_ids":[1,2]}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = d.client.Post(d.srv.URL+"/dashboard/ranges/", "application/json", strings.NewReader(`{"name":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := d.get(t, "/dashboard/ranges/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"name":"Books"`)

	list, err := d.ranges.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	itemPath := fmt.Sprintf("/dashboard/ranges/%d/", list[0].ID)

	resp, body = d.get(t, itemPath)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"included_product_ids":[1,2]`)

	req, err := http.NewRequest(http.MethodDelete, d.srv.URL+itemPath, nil)
	require.NoError(t, err)
	resp, err = d.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = d.get(t, itemPath)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOfferUpdating_PreviewBeforeAnyChange(t *testing.T) {
	d := newDashboard(t)
	rng := d.allProducts(t)
	offer := &domain.Offer{
		Name:      "my offer",
		StartDate: time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC),
		Condition: &domain.Condition{RangeID: rng.ID, Type: domain.ConditionCount, Value: decimal.NewFromInt(3)},
		Benefit:   &domain.Benefit{RangeID: rng.ID, Type: domain.BenefitMultibuy, Value: decimal.NewFromInt(1)},
	}
	require.NoError(t, d.offers.Create(context.Background(), offer))

	resp, body := d.get(t, fmt.Sprintf("/dashboard/offers/%d/preview/", offer.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "my offer")
	assert.Contains(t, body, "Basket includes 3 item(s) from All products")
}

func TestWizard_OutOfRangeValueStaysOnStep(t *testing.T) {
	d := newDashboard(t)
	rng := d.allProducts(t)
	rangeID := strconv.FormatInt(rng.ID, 10)

	resp, _ := d.post(t, "/dashboard/offers/metadata/", url.Values{
		"name":       {"my offer"},
		"start_date": {"2012-01-01"},
		"end_date":   {"2013-01-01"},
	})
	assertRedirect(t, resp, "/dashboard/offers/condition/")

	for _, value := range []string{"1e400", "1e20", "0.001"} {
		resp, body := d.post(t, "/dashboard/offers/condition/", url.Values{
			"range": {rangeID},
			"type":  {"Value"},
			"value": {value},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode, value)
		assert.Contains(t, body, "Ensure that there are no more than", value)
	}

	resp, _ = d.get(t, "/dashboard/offers/preview/")
	assertRedirect(t, resp, "/dashboard/offers/condition/")

	resp, _ = d.get(t, "/dashboard/offers/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOfferList_ActiveBadge(t *testing.T) {
	d := newDashboard(t)
	rng := d.allProducts(t)
	today := time.Now()
	for name, dates := range map[string][2]time.Time{
		"running": {today.AddDate(0, 0, -1), today.AddDate(0, 0, 1)},
		"expired": {time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)},
	} {
		require.NoError(t, d.offers.Create(context.Background(), &domain.Offer{
			Name:      name,
			StartDate: dates[0],
			EndDate:   dates[1],
			Condition: &domain.Condition{RangeID: rng.ID, Type: domain.ConditionCount, Value: decimal.NewFromInt(1)},
			Benefit:   &domain.Benefit{RangeID: rng.ID, Type: domain.BenefitPercentage, Value: decimal.NewFromInt(10)},
		}))
	}

	resp, body := d.get(t, "/dashboard/offers/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, strings.Count(body, `class="badge active"`))
	assert.Equal(t, 1, strings.Count(body, `class="badge inactive"`))
}

func TestOfferDelete_DiscardsOpenEditDraft(t *testing.T) {
	d := newDashboard(t)
	rng := d.allProducts(t)
	offer := &domain.Offer{
		Name:      "my offer",
		StartDate: time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC),
		Condition: &domain.Condition{RangeID: rng.ID, Type: domain.ConditionCount, Value: decimal.NewFromInt(3)},
		Benefit:   &domain.Benefit{RangeID: rng.ID, Type: domain.BenefitMultibuy, Value: decimal.NewFromInt(1)},
	}
	require.NoError(t, d.offers.Create(context.Background(), offer))
	base := fmt.Sprintf("/dashboard/offers/%d/", offer.ID)

	resp, _ := d.post(t, base+"metadata/", url.Values{
		"name":       {"renamed"},
		"start_date": {"2012-01-01"},
		"end_date":   {"2013-01-01"},
	})
	assertRedirect(t, resp, base+"condition/")

	resp, _ = d.post(t, base+"delete/", url.Values{})
	assertRedirect(t, resp, "/dashboard/offers/")

	resp, _ = d.get(t, base+"metadata/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
