package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/evermart/storefront-api/internal/repository"
)

// AnalyticsHandler serves the admin dashboard aggregates.
type AnalyticsHandler struct {
	Analytics *repository.AnalyticsRepo
	Users     *repository.UserRepo
	Products  *repository.ProductRepo
	Log       zerolog.Logger
}

func NewAnalyticsHandler(a *repository.AnalyticsRepo, u *repository.UserRepo, p *repository.ProductRepo, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{Analytics: a, Users: u, Products: p, Log: log}
}

// DailyPoint is one day of the dashboard's sales chart. Every day of
// the requested range is present, zero-valued when nothing sold.
type DailyPoint struct {
	Date    string  `json:"date"`
	Sales   uint64  `json:"sales"`
	Revenue float64 `json:"revenue"`
}

// Get returns the summary counters plus a dense daily series. The
// range defaults to the trailing seven days and can be overridden
// with startDate / endDate query parameters (YYYY-MM-DD).
func (h *AnalyticsHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	start, end, err := seriesRange(c.QueryParam("startDate"), c.QueryParam("endDate"), time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	userCount, err := h.Users.Count(ctx)
	if err != nil {
		h.Log.Error().Err(err).Msg("analytics: user count failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	productCount, err := h.Products.Count(ctx)
	if err != nil {
		h.Log.Error().Err(err).Msg("analytics: product count failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	totals, err := h.Analytics.Totals(ctx)
	if err != nil {
		h.Log.Error().Err(err).Msg("analytics: totals failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	rows, err := h.Analytics.DailySales(ctx, start, end)
	if err != nil {
		h.Log.Error().Err(err).Msg("analytics: daily sales failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"analyticsData": echo.Map{
			"users":        userCount,
			"products":     productCount,
			"totalSales":   totals.Sales,
			"totalRevenue": totals.Revenue,
		},
		"dailySalesData": FillDailySeries(start, end, rows),
	})
}

// seriesRange resolves the chart window from startDate/endDate query
// values (YYYY-MM-DD). The default is the trailing seven calendar
// days, today included, so the dense series carries exactly seven
// points.
func seriesRange(startParam, endParam string, now time.Time) (start, end time.Time, err error) {
	end = now
	start = now.AddDate(0, 0, -6)
	if startParam != "" {
		t, perr := time.Parse("2006-01-02", startParam)
		if perr != nil {
			return start, end, errors.New("invalid startDate")
		}
		start = t
	}
	if endParam != "" {
		t, perr := time.Parse("2006-01-02", endParam)
		if perr != nil {
			return start, end, errors.New("invalid endDate")
		}
		// Include the whole end day.
		end = t.Add(24*time.Hour - time.Second)
	}
	if end.Before(start) {
		return start, end, errors.New("endDate before startDate")
	}
	return start, end, nil
}

// FillDailySeries expands sparse per-day rows into a dense,
// ascending series covering every calendar day of [start, end].
func FillDailySeries(start, end time.Time, rows []repository.DailyRow) []DailyPoint {
	byDate := make(map[string]repository.DailyRow, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	series := make([]DailyPoint, 0, int(endDay.Sub(startDay).Hours()/24)+1)
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		point := DailyPoint{Date: key}
		if row, ok := byDate[key]; ok {
			point.Sales = row.Sales
			point.Revenue = row.Revenue
		}
		series = append(series, point)
	}
	return series
}
