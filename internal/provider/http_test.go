package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fitlife/plan-service/internal/config"
	"fitlife/plan-service/internal/domain"
)

func testRequest() GenerationRequest {
	return GenerationRequest{
		UserID:   "user-1",
		PlanType: domain.PlanTypeWorkout,
		Profile: domain.Profile{
			Age: 30, Gender: "f", HeightCm: 165, WeightKg: 60,
			Goal: domain.GoalLoseWeight, ActivityLevel: "moderate",
		},
	}
}

func TestGenerate_Success(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req GenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.UserID != "user-1" {
			t.Errorf("userId = %q, want user-1", req.UserID)
		}

		json.NewEncoder(w).Encode(GenerationResult{
			PlanID: "ext-42",
			Workout: &domain.WorkoutPayload{Days: []domain.WorkoutDay{
				{Day: "monday", Exercises: []domain.PlanExercise{{Name: "row", Sets: 3, Reps: 10}}},
			}},
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(config.ProviderConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	result, err := p.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v1/plans/workout" {
		t.Errorf("path = %q, want /v1/plans/workout", gotPath)
	}
	if result.PlanID != "ext-42" {
		t.Errorf("planId = %q, want ext-42", result.PlanID)
	}
	if result.Workout == nil {
		t.Error("workout payload missing")
	}
}

func TestGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(config.ProviderConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	_, err := p.Generate(context.Background(), testRequest())
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("error = %v, want ErrGenerationFailed", err)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	p := NewHTTPProvider(config.ProviderConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := p.Generate(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestGenerate_MissingPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 but the wrong shape: no workout payload for a workout request.
		json.NewEncoder(w).Encode(GenerationResult{PlanID: "ext-1"})
	}))
	defer srv.Close()

	p := NewHTTPProvider(config.ProviderConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	_, err := p.Generate(context.Background(), testRequest())
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("error = %v, want ErrGenerationFailed", err)
	}
}
