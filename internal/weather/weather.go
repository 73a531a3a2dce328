// Package weather implements the weather.forecast(lat, lng) external
// collaborator: a 24-hour forecast lookup used by the Critic to flag
// precipitation risk.
package weather

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Aahiro/deerhacks/graph/tool"
)

// Period is one 3-hour slice of a 24-hour forecast.
type Period struct {
	PrecipitationProbability float64
	Condition                string
}

// Forecast is the 24-hour outlook for a single coordinate.
type Forecast struct {
	Periods                  []Period
	HeavyPrecipitationLikely bool
	Summary                  string
}

// heavyConditions flags conditions that count as "heavy precipitation
// likely" on their own, regardless of probability.
var heavyConditions = map[string]bool{
	"Rain":         true,
	"Drizzle":      true,
	"Thunderstorm": true,
	"Snow":         true,
}

const heavyPrecipitationThreshold = 0.6

// Provider looks up a 24-hour forecast for a coordinate. A nil return with
// a nil error means "forecast unavailable".
type Provider interface {
	Forecast(ctx context.Context, lat, lng float64) (*Forecast, error)
}

// HTTPProvider calls a generic REST weather API via the shared tool.HTTPTool,
// decoding an array of 3-hour periods into Forecast.
type HTTPProvider struct {
	BaseURL string
	APIKey  string
	http    *tool.HTTPTool
}

// NewHTTPProvider builds an HTTPProvider against baseURL (e.g.
// "https://api.openweathermap.org/data/2.5/forecast").
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{BaseURL: baseURL, APIKey: apiKey, http: tool.NewHTTPTool()}
}

type rawPeriod struct {
	Pop  float64 `json:"pop"`
	Main struct {
		Condition string `json:"condition"`
	} `json:"weather_main"`
}

type rawForecastResponse struct {
	List []rawPeriod `json:"list"`
}

// Forecast implements Provider over the configured HTTP weather API,
// requesting the first 8 periods (24 hours at 3-hour granularity).
func (p *HTTPProvider) Forecast(ctx context.Context, lat, lng float64) (*Forecast, error) {
	url := fmt.Sprintf("%s?lat=%f&lon=%f&appid=%s&cnt=8", p.BaseURL, lat, lng, p.APIKey)

	result, err := p.http.Call(ctx, map[string]interface{}{
		"method": "GET",
		"url":    url,
	})
	if err != nil {
		return nil, fmt.Errorf("weather forecast request: %w", err)
	}

	statusCode, _ := result["status_code"].(int)
	if statusCode != 0 && (statusCode < 200 || statusCode >= 300) {
		return nil, fmt.Errorf("weather provider returned status %d", statusCode)
	}

	bodyStr, _ := result["body"].(string)
	var raw rawForecastResponse
	if err := json.Unmarshal([]byte(bodyStr), &raw); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	return buildForecast(raw), nil
}

func buildForecast(raw rawForecastResponse) *Forecast {
	forecast := &Forecast{Periods: make([]Period, 0, len(raw.List))}

	for _, p := range raw.List {
		period := Period{PrecipitationProbability: p.Pop, Condition: p.Main.Condition}
		forecast.Periods = append(forecast.Periods, period)

		if period.PrecipitationProbability >= heavyPrecipitationThreshold || heavyConditions[period.Condition] {
			forecast.HeavyPrecipitationLikely = true
		}
	}

	if forecast.HeavyPrecipitationLikely {
		forecast.Summary = "heavy precipitation likely in the next 24 hours"
	} else {
		forecast.Summary = "no significant precipitation expected"
	}

	return forecast
}
