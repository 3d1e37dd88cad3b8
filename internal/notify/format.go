package notify

import (
	"fmt"
	"strings"

	"carwatch/internal/model"
	"carwatch/internal/storage"
)

// FormatListing renders one qualifying listing as a notification message.
func FormatListing(l model.Listing, res model.MatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚗 %s\n", l.Title)
	fmt.Fprintf(&b, "💰 %s\n", FormatPrice(l.Price))
	if l.Location != "" {
		fmt.Fprintf(&b, "📍 %s\n", l.Location)
	}
	fmt.Fprintf(&b, "📅 %s | 🧭 %s | 🧾 %s\n",
		orNA(l.Year), transmissionLabel(l.Transmission), FormatKM(l.MileageKM))
	if res.Score > 0 {
		fmt.Fprintf(&b, "⭐ Score: %d", res.Score)
		var parts []string
		for _, p := range res.Breakdown {
			parts = append(parts, fmt.Sprintf("%s +%d", p.Factor, p.Delta))
		}
		fmt.Fprintf(&b, " (%s)\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(&b, "📱 Source: %s\n", strings.ToUpper(l.Source))
	if l.URL != "" {
		fmt.Fprintf(&b, "\n🔗 %s", l.URL)
	}
	return b.String()
}

// FormatStartup renders the startup summary message.
func FormatStartup(c model.FilterCriteria, intervalSec, maxPerHour int) string {
	var b strings.Builder
	b.WriteString("🚀 Car monitor started\n\n")
	fmt.Fprintf(&b, "Check interval: %d s\n", intervalSec)
	fmt.Fprintf(&b, "Max notifications/hour: %d\n", maxPerHour)
	fmt.Fprintf(&b, "Model: %s\n", strings.Join(c.ModelKeywords, ", "))
	fmt.Fprintf(&b, "Year: %d-%d\n", c.MinYear, c.MaxYear)
	fmt.Fprintf(&b, "Price: %s - %s\n", FormatPrice(c.MinPrice), FormatPrice(c.MaxPrice))
	fmt.Fprintf(&b, "Max mileage: %s\n", FormatKM(c.MaxMileageKM))
	fmt.Fprintf(&b, "Transmission: %s", transmissionLabel(c.Transmission))
	if c.PriorityPlate != "" {
		fmt.Fprintf(&b, "\nPriority plate: %s", c.PriorityPlate)
	}
	return b.String()
}

// FormatError renders an operator error notification.
func FormatError(kind, message string) string {
	return fmt.Sprintf("⚠️ Monitor error\n\nKind: %s\n%s\n\nThe monitor keeps running and will retry.", kind, message)
}

// FormatStats renders the periodic statistics message.
func FormatStats(st storage.Stats) string {
	var b strings.Builder
	b.WriteString("📊 Monitor statistics\n\n")
	fmt.Fprintf(&b, "Listings seen: %d\n", st.TotalSeen)
	fmt.Fprintf(&b, "Notifications today: %d\n", st.NotificationsToday)
	fmt.Fprintf(&b, "Notifications last hour: %d\n", st.NotificationsLastHour)
	for src, n := range st.BySource {
		fmt.Fprintf(&b, "  • %s: %d\n", strings.ToUpper(src), n)
	}
	return b.String()
}

// FormatPrice renders a rupiah amount the way listings advertise it.
func FormatPrice(price int64) string {
	switch {
	case price >= 1_000_000_000:
		return fmt.Sprintf("Rp %.1f M", float64(price)/1_000_000_000)
	case price >= 1_000_000:
		return fmt.Sprintf("Rp %d Juta", price/1_000_000)
	case price == 0:
		return "N/A"
	default:
		return fmt.Sprintf("Rp %d", price)
	}
}

// FormatKM renders a kilometer reading with dot thousand separators.
func FormatKM(km int) string {
	if km <= 0 {
		return "N/A"
	}
	s := fmt.Sprintf("%d", km)
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, c)
	}
	return string(out) + " km"
}

func transmissionLabel(t model.Transmission) string {
	switch t {
	case model.TransmissionManual:
		return "Manual"
	case model.TransmissionAutomatic:
		return "Matic"
	default:
		return "N/A"
	}
}

func orNA(year int) string {
	if year == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d", year)
}
