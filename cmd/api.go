package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agrisense/maizeguard/internal/config"
	"github.com/agrisense/maizeguard/internal/ingest"
	"github.com/agrisense/maizeguard/internal/model"
	"github.com/agrisense/maizeguard/internal/risk"
	"github.com/agrisense/maizeguard/internal/store"
	"github.com/agrisense/maizeguard/internal/upload"
	"github.com/agrisense/maizeguard/pkg/customvision"
	"github.com/agrisense/maizeguard/pkg/nasa"
	"github.com/agrisense/maizeguard/pkg/openmeteo"
)

const serviceVersion = "2.0.0"

// classNames are the labels the published iteration was trained on, kept
// here for client display.
var classNames = []string{
	"Healthy",
	"Gray Leaf Spot",
	"Common Rust",
	"Northern Corn Leaf Blight",
	"Southern Rust",
	"Leaf Spot",
	"Streak Virus",
	"Blight",
}

// batchConcurrency caps parallel classifier calls in batch predict.
const batchConcurrency = 4

// api bundles the HTTP handlers and their dependencies. The gateway
// clients are interfaces so tests can swap fakes in.
type api struct {
	svc        *ingest.Service
	classifier customvision.Client
	weather    openmeteo.Client
	satellite  nasa.Client
	upload     config.UploadConfig
	cors       []string
}

func (a *api) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cors,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/", a.handleHealth)
	r.Get("/health", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/disease", func(r chi.Router) {
			r.Post("/predict", a.handlePredict)
			r.Post("/batch-predict", a.handleBatchPredict)
			r.Get("/classes", a.handleClasses)
		})
		r.Route("/weather", func(r chi.Router) {
			r.Get("/current", a.handleCurrentWeather)
			r.Get("/forecast", a.handleForecast)
			r.Get("/disease-risk-conditions", a.handleRiskConditions)
		})
		r.Route("/history", func(r chi.Router) {
			r.Get("/scans", a.handleScans)
			r.Post("/farms", a.handleSaveFarm)
			r.Get("/farms/{growerID}", a.handleListFarms)
			r.Get("/satellite/assets", a.handleSatelliteAssets)
			r.Get("/satellite/image-url", a.handleSatelliteImageURL)
		})
	})

	return r
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "maizeguard",
		"version": serviceVersion,
	})
}

// weatherPayload is the simplified weather block attached to predictions
// and returned by the current-weather endpoint.
type weatherPayload struct {
	Temperature   *float64        `json:"temperature"`
	Humidity      *float64        `json:"humidity"`
	Precipitation *float64        `json:"precipitation"`
	WindSpeed     *float64        `json:"wind_speed"`
	DiseaseRisk   model.RiskLevel `json:"disease_risk"`
}

func weatherFromCurrent(cur *openmeteo.Current) (*weatherPayload, *model.WeatherSample) {
	sample := &model.WeatherSample{
		Temperature:   cur.Temperature,
		Humidity:      cur.Humidity,
		Precipitation: cur.Precipitation,
		WindSpeed:     cur.WindSpeed,
	}
	return &weatherPayload{
		Temperature:   cur.Temperature,
		Humidity:      cur.Humidity,
		Precipitation: cur.Precipitation,
		WindSpeed:     cur.WindSpeed,
		DiseaseRisk:   risk.FromSample(sample),
	}, sample
}

func (a *api) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(a.upload.MaxSizeBytes() + 1<<20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	if err := upload.Validate(header.Filename, data, a.upload.MaxSizeBytes(), a.upload.AllowedExts); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	growerID := r.FormValue("grower_id")
	if growerID == "" {
		growerID = "demo_farmer"
	}
	lat := parseOptionalFloat(r.FormValue("latitude"))
	lon := parseOptionalFloat(r.FormValue("longitude"))

	result, err := a.classifier.Classify(ctx, data)
	if err != nil {
		zap.L().Error("classification failed", zap.String("filename", header.Filename), zap.Error(err))
		respondError(w, http.StatusBadGateway, "prediction failed")
		return
	}

	// Weather is context, not a prerequisite. A gateway failure degrades
	// the response rather than failing the prediction.
	var (
		weatherOut *weatherPayload
		sample     *model.WeatherSample
	)
	if lat != nil && lon != nil {
		cur, werr := a.weather.Current(ctx, *lat, *lon)
		if werr != nil {
			zap.L().Warn("weather fetch failed", zap.Error(werr))
		} else {
			weatherOut, sample = weatherFromCurrent(cur)
		}
	}

	var imageRef string
	if a.upload.Keep {
		ref, serr := upload.Save(a.upload.Dir, data)
		if serr != nil {
			zap.L().Warn("image save failed", zap.Error(serr))
		} else {
			imageRef = ref
		}
	}

	var scanID *int64
	if lat != nil && lon != nil {
		id, ierr := a.svc.IngestScan(ctx, ingest.ScanInput{
			GrowerID:  growerID,
			Latitude:  lat,
			Longitude: lon,
			Classification: model.ClassificationResult{
				Label:         result.Label,
				Confidence:    result.Confidence,
				Probabilities: result.Probabilities,
			},
			Weather:  sample,
			ImageRef: imageRef,
		})
		if ierr != nil {
			zap.L().Error("scan persist failed", zap.String("grower", growerID), zap.Error(ierr))
		} else {
			scanID = &id
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"prediction":      result.Label,
		"confidence":      result.Confidence,
		"all_predictions": result.Probabilities,
		"message":         "Prediction successful",
		"weather":         weatherOut,
		"scan_id":         scanID,
	})
}

type batchResult struct {
	Filename       string             `json:"filename"`
	Prediction     string             `json:"prediction,omitempty"`
	Confidence     float64            `json:"confidence,omitempty"`
	AllPredictions map[string]float64 `json:"all_predictions,omitempty"`
	Error          string             `json:"error,omitempty"`
}

func (a *api) handleBatchPredict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "files are required")
		return
	}

	results := make([]batchResult, len(files))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(batchConcurrency)
	for i, fh := range files {
		g.Go(func() error {
			results[i] = batchResult{Filename: fh.Filename}

			f, err := fh.Open()
			if err != nil {
				results[i].Error = "could not read file"
				return nil
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				results[i].Error = "could not read file"
				return nil
			}

			if err := upload.Validate(fh.Filename, data, a.upload.MaxSizeBytes(), a.upload.AllowedExts); err != nil {
				results[i].Error = err.Error()
				return nil
			}

			result, err := a.classifier.Classify(ctx, data)
			if err != nil {
				zap.L().Error("batch classification failed", zap.String("filename", fh.Filename), zap.Error(err))
				results[i].Error = "prediction failed"
				return nil
			}

			results[i].Prediction = result.Label
			results[i].Confidence = result.Confidence
			results[i].AllPredictions = result.Probabilities
			return nil
		})
	}
	_ = g.Wait()

	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (a *api) handleClasses(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"classes":     classNames,
		"num_classes": len(classNames),
	})
}

func (a *api) handleScans(w http.ResponseWriter, r *http.Request) {
	growerID := r.URL.Query().Get("grower_id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	scans, err := a.svc.ListScans(r.Context(), growerID, limit)
	if err != nil {
		zap.L().Error("scan history fetch failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to fetch scan history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"count":  len(scans),
		"data":   scans,
	})
}

func (a *api) handleSaveFarm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GrowerID string          `json:"grower_id"`
		FarmName string          `json:"farm_name"`
		Boundary json.RawMessage `json:"boundary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GrowerID == "" || len(req.Boundary) == 0 {
		respondError(w, http.StatusBadRequest, "grower_id and boundary are required")
		return
	}

	if err := a.svc.SaveFarm(r.Context(), req.GrowerID, req.FarmName, req.Boundary); err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("farm save failed", zap.String("grower", req.GrowerID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save farm boundary")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Farm boundary saved",
	})
}

func (a *api) handleListFarms(w http.ResponseWriter, r *http.Request) {
	growerID := chi.URLParam(r, "growerID")

	farms, err := a.svc.ListFarms(r.Context(), growerID)
	if err != nil {
		zap.L().Error("farm list failed", zap.String("grower", growerID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to fetch farms")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"data":   farms,
	})
}

func (a *api) handleCurrentWeather(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := requireLatLon(w, r)
	if !ok {
		return
	}

	cur, err := a.weather.Current(r.Context(), lat, lon)
	if err != nil {
		zap.L().Error("weather fetch failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "error fetching weather data")
		return
	}

	payload, _ := weatherFromCurrent(cur)
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"latitude":      lat,
			"longitude":     lon,
			"temperature":   payload.Temperature,
			"humidity":      payload.Humidity,
			"precipitation": payload.Precipitation,
			"wind_speed":    payload.WindSpeed,
			"disease_risk":  payload.DiseaseRisk,
		},
	})
}

type forecastDay struct {
	Date          string          `json:"date"`
	TempMax       *float64        `json:"temp_max"`
	TempMin       *float64        `json:"temp_min"`
	Precipitation *float64        `json:"precipitation"`
	Humidity      *float64        `json:"humidity"`
	WindSpeed     *float64        `json:"wind_speed"`
	DiseaseRisk   model.RiskLevel `json:"disease_risk"`
}

func (a *api) handleForecast(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := requireLatLon(w, r)
	if !ok {
		return
	}

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 16 {
			respondError(w, http.StatusBadRequest, "days must be between 1 and 16")
			return
		}
		days = n
	}

	forecast, err := a.weather.Forecast(r.Context(), lat, lon, days)
	if err != nil {
		zap.L().Error("forecast fetch failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "error fetching forecast data")
		return
	}

	out := make([]forecastDay, len(forecast))
	for i, d := range forecast {
		out[i] = forecastDay{
			Date:          d.Date,
			TempMax:       d.TempMax,
			TempMin:       d.TempMin,
			Precipitation: d.Precipitation,
			Humidity:      d.Humidity,
			WindSpeed:     d.WindSpeed,
			DiseaseRisk:   risk.Assess(d.TempMax, d.Humidity, d.Precipitation),
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"location": map[string]float64{
			"latitude":  lat,
			"longitude": lon,
		},
		"forecast": out,
	})
}

func (a *api) handleRiskConditions(w http.ResponseWriter, r *http.Request) {
	conditions := risk.Conditions()
	diseases := make([]map[string]any, len(conditions))
	for i, c := range conditions {
		diseases[i] = map[string]any{
			"name": c.Name,
			"optimal_conditions": map[string]string{
				"temperature": c.Temperature,
				"humidity":    c.Humidity,
				"notes":       c.Notes,
			},
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"diseases": diseases})
}

func (a *api) handleSatelliteAssets(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := requireLatLon(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")

	asset, err := a.satellite.AssetInfo(r.Context(), lat, lon, date)
	if err != nil {
		zap.L().Error("satellite lookup failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "satellite lookup failed")
		return
	}
	if asset == nil {
		respondError(w, http.StatusNotFound, "no satellite assets found for this location/date")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": asset})
}

func (a *api) handleSatelliteImageURL(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := requireLatLon(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"url":    a.satellite.ImageryURL(lat, lon, date),
	})
}

func requireLatLon(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	q := r.URL.Query()
	latRaw := q.Get("latitude")
	if latRaw == "" {
		latRaw = q.Get("lat")
	}
	lonRaw := q.Get("longitude")
	if lonRaw == "" {
		lonRaw = q.Get("lon")
	}

	lat, latErr := strconv.ParseFloat(latRaw, 64)
	lon, lonErr := strconv.ParseFloat(lonRaw, 64)
	if latRaw == "" || lonRaw == "" || latErr != nil || lonErr != nil {
		respondError(w, http.StatusBadRequest, "latitude and longitude are required")
		return 0, 0, false
	}
	return lat, lon, true
}

func parseOptionalFloat(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
