package service

import (
	"time"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

type Period string

const (
	PeriodToday      Period = "today"
	PeriodLast7Days  Period = "last7days"
	PeriodLast30Days Period = "last30days"
	PeriodThisMonth  Period = "thisMonth"
	PeriodLastMonth  Period = "lastMonth"
	PeriodThisYear   Period = "thisYear"
	PeriodLastYear   Period = "lastYear"
	PeriodAllTime    Period = "allTime"
	PeriodCustom     Period = "custom"
)

// SalesStats summarises orders created in [From, To]. Revenue counts
// completed orders only.
type SalesStats struct {
	Period      Period       `json:"period"`
	From        time.Time    `json:"from"`
	To          time.Time    `json:"to"`
	TotalOrders int          `json:"totalOrders"`
	TotalSales  int          `json:"totalSales"`
	Revenue     domain.Money `json:"revenue"`
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// PeriodRange resolves a preset to an inclusive time range in now's
// location. For PeriodCustom, zero from/to default to today. Unknown
// presets resolve like today.
func PeriodRange(p Period, now, from, to time.Time) (time.Time, time.Time) {
	y, m, _ := now.Date()
	loc := now.Location()
	switch p {
	case PeriodLast7Days:
		return startOfDay(now.AddDate(0, 0, -6)), endOfDay(now)
	case PeriodLast30Days:
		return startOfDay(now.AddDate(0, 0, -29)), endOfDay(now)
	case PeriodThisMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), endOfDay(now)
	case PeriodLastMonth:
		start := time.Date(y, m-1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	case PeriodThisYear:
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc), endOfDay(now)
	case PeriodLastYear:
		start := time.Date(y-1, 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0).Add(-time.Nanosecond)
	case PeriodAllTime:
		return time.Unix(0, 0).In(loc), endOfDay(now)
	case PeriodCustom:
		if from.IsZero() {
			from = now
		}
		if to.IsZero() {
			to = now
		}
		return startOfDay(from.In(loc)), endOfDay(to.In(loc))
	}
	return startOfDay(now), endOfDay(now)
}

// ComputeSales aggregates orders over the resolved period.
func ComputeSales(orders []domain.Order, p Period, now, from, to time.Time) SalesStats {
	start, end := PeriodRange(p, now, from, to)
	stats := SalesStats{Period: p, From: start, To: end}
	for _, o := range orders {
		if o.CreatedAt.Before(start) || o.CreatedAt.After(end) {
			continue
		}
		stats.TotalOrders++
		if o.Status == domain.OrderStatusCompleted {
			stats.TotalSales++
			stats.Revenue += o.Total
		}
	}
	return stats
}
