package api

import (
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/maxaizer/car-tracker/internal/services"
	"github.com/pkg/errors"
	"net/http"
	"strconv"
)

const userKey = "user_id"

type saveSearchRequest struct {
	Platform      string        `json:"platform" binding:"required"`
	Params        models.Params `json:"params" binding:"required"`
	Notifications *bool         `json:"notifications"`
}

type saveSearchResponse struct {
	ID      string `json:"id"`
	IsNew   bool   `json:"is_new"`
	Scraped int    `json:"scraped"`
}

func parseUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user"), 10, 64)
	if err != nil {
		writeBadRequest(c, fmt.Sprintf("invalid user id %q", c.Param("user")))
		return
	}
	c.Set(userKey, userID)
	c.Next()
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(userKey)
}

func requiredQuery(c *gin.Context, names ...string) ([]string, bool) {
	values := make([]string, 0, len(names))
	for _, name := range names {
		value := c.Query(name)
		if value == "" {
			writeBadRequest(c, fmt.Sprintf("query parameter '%s' is required", name))
			return nil, false
		}
		values = append(values, value)
	}
	return values, true
}

func platformQuery(c *gin.Context, name string) (models.Platform, bool) {
	platform, err := models.ToPlatform(c.Query(name))
	if err != nil {
		writeBadRequest(c, fmt.Sprintf("query parameter '%s': %v", name, err))
		return "", false
	}
	return platform, true
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.deps.Registry.Stats(c.Request.Context())
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listPlatformBrands(c *gin.Context) {
	platform, err := models.ToPlatform(c.Param("platform"))
	if err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	catalog, ok := s.deps.Catalogs[platform]
	if !ok {
		writeNotFound(c, fmt.Sprintf("no scraper configured for %s", platform))
		return
	}

	brands, err := catalog.FetchBrands(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"platform": platform, "brands": brands})
}

func (s *Server) listSearches(c *gin.Context) {
	searches, err := s.deps.Registry.ListSearches(c.Request.Context(), userID(c))
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, searches)
}

// saveSearch scrapes the platform with the given params and stores the
// results, creating the search on first use.
func (s *Server) saveSearch(c *gin.Context) {
	var request saveSearchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		writeBadRequest(c, fmt.Sprintf("invalid search: %v", err))
		return
	}
	platform, err := models.ToPlatform(request.Platform)
	if err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	fetcher, ok := s.deps.Fetchers[platform]
	if !ok {
		writeNotFound(c, fmt.Sprintf("no scraper configured for %s", platform))
		return
	}

	ctx := c.Request.Context()
	ads, err := fetcher.FetchAds(ctx, request.Params)
	if err != nil {
		writeError(c, http.StatusBadGateway, err.Error())
		return
	}

	notifications := true
	if request.Notifications != nil {
		notifications = *request.Notifications
	}
	id, isNew, err := s.deps.Registry.SaveSearch(ctx, userID(c), platform, request.Params, ads, notifications)
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	if id == "" {
		writeError(c, http.StatusConflict, "searches limit reached, delete a search to add a new one")
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	c.JSON(status, saveSearchResponse{ID: id, IsNew: isNew, Scraped: len(ads)})
}

func (s *Server) getSearch(c *gin.Context) {
	search, err := s.deps.Registry.GetSearch(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	if search == nil {
		writeNotFound(c, fmt.Sprintf("search %s not found", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, search)
}

func (s *Server) getResults(c *gin.Context) {
	ctx := c.Request.Context()

	search, err := s.deps.Registry.GetSearch(ctx, userID(c), c.Param("id"))
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	if search == nil {
		writeNotFound(c, fmt.Sprintf("search %s not found", c.Param("id")))
		return
	}

	results, err := s.deps.Registry.GetResults(ctx, userID(c), search.ID)
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"search_id": search.ID, "platform": search.Platform, "results": results})
}

func (s *Server) toggleNotifications(c *gin.Context) {
	enabled, found, err := s.deps.Registry.ToggleNotifications(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	if !found {
		writeNotFound(c, fmt.Sprintf("search %s not found", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": enabled})
}

func (s *Server) deleteSearch(c *gin.Context) {
	removed, err := s.deps.Registry.DeleteSearch(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	if !removed {
		writeNotFound(c, fmt.Sprintf("search %s not found", c.Param("id")))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listBrands(c *gin.Context) {
	brands, err := s.deps.Registry.UniqueBrandsAndModels(c.Request.Context(), userID(c))
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, brands)
}

func (s *Server) adsByModel(c *gin.Context) {
	query, ok := requiredQuery(c, "brand", "model")
	if !ok {
		return
	}
	platform, ok := platformQuery(c, "platform")
	if !ok {
		return
	}

	ads, err := s.deps.Registry.AdsByModel(c.Request.Context(), userID(c), query[0], query[1], platform)
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	if ads == nil {
		ads = []services.PricedAd{}
	}
	c.JSON(http.StatusOK, ads)
}

func (s *Server) compareByModel(c *gin.Context) {
	query, ok := requiredQuery(c, "brand", "model")
	if !ok {
		return
	}

	summary, err := s.deps.Comparison.CompareByModel(c.Request.Context(), userID(c), query[0], query[1])
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) comparePlatforms(c *gin.Context) {
	platformA, ok := platformQuery(c, "a")
	if !ok {
		return
	}
	platformB, ok := platformQuery(c, "b")
	if !ok {
		return
	}
	if platformA == platformB {
		writeBadRequest(c, "platforms must differ")
		return
	}

	comparison, err := s.deps.Comparison.ComparePlatforms(c.Request.Context(), userID(c), platformA, platformB)
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, comparison)
}

func (s *Server) compareSearches(c *gin.Context) {
	query, ok := requiredQuery(c, "a", "b")
	if !ok {
		return
	}

	comparison, found, err := s.deps.Comparison.CompareSearches(c.Request.Context(), userID(c), query[0], query[1])
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	if !found {
		writeNotFound(c, "one of the searches was not found")
		return
	}
	c.JSON(http.StatusOK, comparison)
}

func attachment(c *gin.Context, contentType string, name string) {
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

func (s *Server) exportJSON(c *gin.Context) {
	attachment(c, "application/json; charset=utf-8", fmt.Sprintf("searches_%d.json", userID(c)))
	if err := s.deps.Exporter.ExportJSON(c.Request.Context(), userID(c), c.Writer); err != nil {
		writeInternalServerError(c, err)
	}
}

func (s *Server) exportSearchesCSV(c *gin.Context) {
	attachment(c, "text/csv; charset=utf-8", fmt.Sprintf("searches_%d.csv", userID(c)))
	if err := s.deps.Exporter.ExportSearchesCSV(c.Request.Context(), userID(c), c.Writer); err != nil {
		writeInternalServerError(c, err)
	}
}

func (s *Server) exportResultsCSV(c *gin.Context) {
	ctx := c.Request.Context()

	search, err := s.deps.Registry.GetSearch(ctx, userID(c), c.Param("id"))
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	if search == nil {
		writeNotFound(c, fmt.Sprintf("search %s not found", c.Param("id")))
		return
	}

	attachment(c, "text/csv; charset=utf-8", fmt.Sprintf("results_%s.csv", search.ID))
	if _, err = s.deps.Exporter.ExportResultsCSV(ctx, userID(c), search.ID, c.Writer); err != nil {
		writeInternalServerError(c, err)
	}
}

func (s *Server) importJSON(c *gin.Context) {
	imported, err := s.deps.Exporter.ImportJSON(c.Request.Context(), userID(c), c.Request.Body)
	if errors.Is(err, services.ErrInvalidImportFile) {
		writeBadRequest(c, err.Error())
		return
	}
	if err != nil {
		writeInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported})
}
