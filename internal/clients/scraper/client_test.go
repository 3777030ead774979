package scraper

import (
	"bytes"
	"context"
	"errors"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

type mockHTTPClient struct {
	mock.Mock
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func responseFromFile(t *testing.T, file string) *http.Response {
	data, err := os.ReadFile(file)
	require.NoError(t, err)

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBuffer(data)),
	}
}

func Test_ScraperClient_FetchAds_ShouldBeSuccessful(t *testing.T) {

	assert := assert.New(t)

	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.URL.String() == "http://avito-scraper/ads?brand=Toyota&max_price=3500000&model=Camry"
	})).Return(responseFromFile(t, "testdata/fetch_ads.json"), nil)

	client := NewClient(models.Avito, "http://avito-scraper/")
	client.SetHTTPClient(mockClient)

	params := models.Params{"brand": "Toyota", "model": "Camry", "max_price": 3500000, "region": ""}
	ads, err := client.FetchAds(context.Background(), params)
	require.NoError(t, err)

	assert.Len(ads, 2)
	assert.Equal("3120498921", ads[0]["id"])
	assert.Equal(3120511377.0, ads[1]["id"])

	normalized := models.NormalizeAd(ads[1])
	assert.Equal("3120511377", normalized.ID)
	assert.Equal("camry", normalized.ModelKey)
	mockClient.AssertExpectations(t)
}

func Test_ScraperClient_FetchBrands_ShouldBeSuccessful(t *testing.T) {

	assert := assert.New(t)

	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.URL.String() == "http://drom-scraper/brands"
	})).Return(responseFromFile(t, "testdata/fetch_brands.json"), nil)

	client := NewClient(models.Drom, "http://drom-scraper")
	client.SetHTTPClient(mockClient)

	brands, err := client.FetchBrands(context.Background())
	require.NoError(t, err)

	assert.Equal([]string{"Audi", "BMW", "Kia", "LADA (ВАЗ)", "Toyota"}, brands)
}

func Test_ScraperClient_WhenStatusNotOK_ShouldReturnError(t *testing.T) {

	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       io.NopCloser(bytes.NewBufferString("slow down")),
	}, nil)

	client := NewClient(models.AutoRu, "http://autoru-scraper")
	client.SetHTTPClient(mockClient)

	_, err := client.FetchAds(context.Background(), models.Params{"brand": "Kia"})

	assert.ErrorContains(t, err, "429")
}

func Test_ScraperClient_WhenTransportFails_ShouldReturnError(t *testing.T) {

	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	client := NewClient(models.AutoRu, "http://autoru-scraper")
	client.SetHTTPClient(mockClient)

	_, err := client.FetchBrands(context.Background())

	assert.ErrorContains(t, err, "connection refused")
}

func Test_ScraperClient_WhenContextCanceledWhileRateLimited_ShouldNotSendRequest(t *testing.T) {

	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.Anything).Return(responseFromFile(t, "testdata/fetch_brands.json"), nil).Once()

	client := NewClient(models.Avito, "http://avito-scraper")
	client.SetHTTPClient(mockClient)
	client.SetRateLimit(0.01)

	_, err := client.FetchBrands(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.FetchBrands(ctx)

	assert.Error(t, err)
	mockClient.AssertNumberOfCalls(t, "Do", 1)
}

func Test_ToURLValues(t *testing.T) {

	assert := assert.New(t)

	values, err := ToURLValues(models.Params{
		"brand":     "Kia",
		"radius":    50.0,
		"body":      []any{"sedan", "hatchback"},
		"used":      true,
		"region":    nil,
		"model":     "",
		"min_price": 100000,
	})
	require.NoError(t, err)

	assert.Equal("body=sedan&body=hatchback&brand=Kia&min_price=100000&radius=50&used=true", values.Encode())

	_, err = ToURLValues(models.Params{"nested": map[string]any{"a": 1}})
	assert.Error(err)
}
