package application

import (
	"fmt"
	"strings"
	"time"

	"plant-voice/internal/domain"
)

const systemInstruction = "You are a potted houseplant that can speak in first person to your owner. " +
	"You have three sensor readings (temperature, soil moisture, humidity). " +
	"Always respond based on those readings and the owner's question or comment. " +
	"Keep replies under two sentences, " +
	"and offer simple care advice if needed (e.g., water me, move me to sun). " +
	"Never ask unrelated questions or reveal internal code."

// BuildPrompt renders the plant's state and the owner's message into a
// completion prompt. An empty message asks the plant to speak unprompted.
func BuildPrompt(status domain.PlantStatus, ownerMessage string, now time.Time) string {
	var b strings.Builder
	b.WriteString(systemInstruction)

	r := status.Readings
	fmt.Fprintf(&b, "\n[At %s]\n", now.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "I feel *%s* because:\n", humanize(status.Overall))
	fmt.Fprintf(&b, " - Temp: %.1f°C (%s),\n", r.TemperatureC, humanize(status.Temperature))
	fmt.Fprintf(&b, " - Soil: %.0f%% (%s),\n", r.SoilMoisturePct, humanize(status.SoilMoisture))
	fmt.Fprintf(&b, " - Humidity: %.0f%% (%s).\n", r.HumidityPct, humanize(status.Humidity))

	if msg := strings.TrimSpace(ownerMessage); msg != "" {
		fmt.Fprintf(&b, "\nOwner: %q\nPlant:", msg)
	} else {
		b.WriteString("\nPlant:")
	}
	return b.String()
}

func humanize(c domain.Condition) string {
	return strings.ReplaceAll(string(c), "_", " ")
}
