package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ideaforge/ideaforge-backend/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "A",
		LastName:  "B",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedIdea(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, phase types.IdeaPhase) *types.Idea {
	tb.Helper()
	i := &types.Idea{
		ID:             uuid.New(),
		UserID:         userID,
		RawText:        "a recipe planner that builds grocery lists",
		Clarifications: datatypes.JSON([]byte("[]")),
		Phase:          phase,
	}
	if err := tx.WithContext(ctx).Create(i).Error; err != nil {
		tb.Fatalf("seed idea: %v", err)
	}
	return i
}

func SeedReport(tb testing.TB, ctx context.Context, tx *gorm.DB, ideaID uuid.UUID) *types.ValidationReport {
	tb.Helper()
	r := &types.ValidationReport{
		ID:                uuid.New(),
		IdeaID:            ideaID,
		MarketFeasibility: datatypes.JSON([]byte(`{"score":7}`)),
		Improvements:      datatypes.JSON([]byte(`["offline mode"]`)),
		CoreFeatures:      datatypes.JSON([]byte(`["meal planning","grocery list"]`)),
		TechStack:         datatypes.JSON([]byte(`{"backend":"go"}`)),
		PricingModel:      datatypes.JSON([]byte(`{"model":"freemium"}`)),
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed validation report: %v", err)
	}
	return r
}

func SeedArtifact(tb testing.TB, ctx context.Context, tx *gorm.DB, ideaID uuid.UUID, artifactType types.ArtifactType, status types.ArtifactStatus, contentJSON string) *types.Artifact {
	tb.Helper()
	a := &types.Artifact{
		ID:          uuid.New(),
		IdeaID:      ideaID,
		Type:        artifactType,
		Status:      status,
		ChatHistory: datatypes.JSON([]byte("[]")),
	}
	if contentJSON != "" {
		a.ContentJSON = datatypes.JSON([]byte(contentJSON))
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed artifact: %v", err)
	}
	return a
}

func SeedTeam(tb testing.TB, ctx context.Context, tx *gorm.DB, prefix string) *types.Team {
	tb.Helper()
	t := &types.Team{
		ID:     uuid.New(),
		Name:   prefix + " team",
		Prefix: prefix,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed team: %v", err)
	}
	return t
}

func SeedProject(tb testing.TB, ctx context.Context, tx *gorm.DB, teamID uuid.UUID) *types.Project {
	tb.Helper()
	p := &types.Project{
		ID:     uuid.New(),
		TeamID: teamID,
		Name:   "project",
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

func SeedFeature(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID, teamID uuid.UUID, identifier, title string) *types.Feature {
	tb.Helper()
	f := &types.Feature{
		ID:         uuid.New(),
		ProjectID:  projectID,
		TeamID:     teamID,
		Identifier: identifier,
		Title:      title,
		Type:       types.FeatureTypeCore,
		Status:     types.FeatureStatusDiscovery,
		Priority:   types.PriorityMedium,
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed feature: %v", err)
	}
	return f
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
