package models

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func Test_NormalizeAd_WhenFieldsMissing_ShouldFillSentinels(t *testing.T) {
	assert := assert.New(t)

	ad := NormalizeAd(RawAd{})

	assert.NotEmpty(ad.ID)
	assert.Equal(NoTitle, ad.Title)
	assert.Equal(NoPrice, ad.Price)
	assert.Equal(NoURL, ad.URL)
	assert.Equal(Unspecified, ad.Brand)
	assert.Equal(Unspecified, ad.Model)
	assert.Equal(Unspecified, ad.Address)
	assert.Empty(ad.BrandKey)
	assert.Empty(ad.ModelKey)
	assert.False(ad.HasBrandModel())
}

func Test_NormalizeAd_WhenBrandMissing_ShouldExtractFromTitle(t *testing.T) {
	assert := assert.New(t)

	ad := NormalizeAd(RawAd{"id": "1", "title": "Toyota Camry 2.5 AT, 2019", "price": "1 500 000 ₽"})

	assert.Equal("1", ad.ID)
	assert.Equal("Toyota", ad.Brand)
	assert.Equal("Camry", ad.Model)
	assert.Equal("toyota", ad.BrandKey)
	assert.Equal("camry", ad.ModelKey)
	assert.Equal(1500000.0, ad.PriceValue())
}

func Test_NormalizeAd_WhenOnlyModelMissing_ShouldKeepBrand(t *testing.T) {
	assert := assert.New(t)

	ad := NormalizeAd(RawAd{"title": "Лада Веста SW", "brand": "LADA", "model": Unspecified})

	assert.Equal("LADA", ad.Brand)
	assert.Equal("Веста", ad.Model)
	assert.Equal("lada", ad.BrandKey)
	assert.Equal("веста", ad.ModelKey)
}

func Test_NormalizeAd_WhenTitleHasOneWord_ShouldKeepUnspecified(t *testing.T) {
	assert := assert.New(t)

	ad := NormalizeAd(RawAd{"title": "Продам"})

	assert.Equal(Unspecified, ad.Brand)
	assert.Equal(Unspecified, ad.Model)
}

func Test_NormalizeAd_WhenFieldsHaveOtherTypes_ShouldConvertToText(t *testing.T) {
	assert := assert.New(t)

	ad := NormalizeAd(RawAd{"id": 12345.0, "price": 990000, "location": " Москва ", "link": "https://example.com/1"})

	assert.Equal("12345", ad.ID)
	assert.Equal("990000", ad.Price)
	assert.Equal("Москва", ad.Address)
	assert.Equal("https://example.com/1", ad.URL)
}

func Test_NormalizeAd_WhenAppliedTwice_ShouldBeIdempotent(t *testing.T) {
	assert := assert.New(t)

	raws := []RawAd{
		{"id": "7", "title": "BMW X5 xDrive30d", "price": "5 000 000", "date": "2024-01-01", "url": "https://example.com/7"},
		{"title": "Kia Rio", "brand": "KIA"},
		{},
	}

	for _, raw := range raws {
		once := NormalizeAd(raw)
		twice := NormalizeAd(once.ToRaw())
		assert.Equal(once, twice)
	}
}

func Test_ExtractBrandModel(t *testing.T) {
	assert := assert.New(t)

	brand, model, ok := ExtractBrandModel("  Hyundai Solaris, 2020")
	assert.True(ok)
	assert.Equal("Hyundai", brand)
	assert.Equal("Solaris", model)

	_, _, ok = ExtractBrandModel("!!! срочно")
	assert.False(ok)
}
