package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/repos/testutil"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

const testPlanJSON = `{
	"features": [
		{"name": "Accounts", "description": "signup and login", "type": "core", "priority": "high", "node_id": "n1"},
		{"name": "Profiles", "description": "user profiles", "type": "enhancement", "parent": "Accounts"},
		{"name": "", "description": "nameless, skipped"},
		{"name": "Accounts", "description": "duplicate, skipped"},
		{"name": "Ghost", "parent": "Missing", "type": "warp drive", "priority": "whenever"}
	],
	"milestones": [
		{"feature": "Accounts", "title": "MVP auth", "description": "email only"},
		{"feature": "Accounts", "title": "Social auth"},
		{"feature": "Nope", "title": "Orphan milestone"}
	],
	"issues": [
		{
			"title": "Build login form", "feature": "Accounts", "milestone": "MVP auth",
			"type": "task", "priority": "urgent",
			"sub_issues": [
				{"title": "Form layout", "type": "task"},
				{"title": "", "type": "task"},
				{"title": "Error states", "type": "story"}
			]
		},
		{"title": "", "feature": "Accounts"},
		{"title": "Orphan issue", "feature": "Missing"},
		{"title": "Add avatar upload", "feature": "Profiles", "milestone": "No such milestone"}
	]
}`

func newMaterializer(tb testing.TB, tx *gorm.DB) MaterializerService {
	tb.Helper()
	log := testutil.Logger(tb)
	ideas := newIdeaService(tb, tx, &fakeAI{}, &recordingNotifier{})
	teams := repos.NewTeamRepo(tx, log)
	features := repos.NewFeatureRepo(tx, log)
	issues := repos.NewIssueRepo(tx, log)
	allocator := NewIdentifierAllocator(log, teams, features, issues)
	return NewMaterializerService(log, tx, ideas,
		repos.NewArtifactRepo(tx, log),
		teams,
		repos.NewProjectRepo(tx, log),
		features,
		repos.NewMilestoneRepo(tx, log),
		issues,
		allocator,
	)
}

func TestConvertIdeaMaterializesPlan(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "convert@test.dev")
	idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseBlueprintGenerated)
	testutil.SeedArtifact(t, ctx, tx, idea.ID, types.ArtifactDiagramKanban, types.ArtifactStatusCompleted, testPlanJSON)

	prefix := uniquePrefix(t)
	svc := newMaterializer(t, tx)

	project, err := svc.ConvertIdea(ctx, user.ID, idea.ID, ConvertRequest{
		TeamPrefix:  prefix,
		TeamName:    "Product",
		ProjectName: "Recipe Planner",
	})
	if err != nil {
		t.Fatalf("ConvertIdea: %v", err)
	}
	if project.Name != "Recipe Planner" {
		t.Fatalf("project name: %q", project.Name)
	}

	var features []*types.Feature
	if err := tx.Where("project_id = ?", project.ID).Order("identifier ASC").Find(&features).Error; err != nil {
		t.Fatalf("load features: %v", err)
	}
	if len(features) != 3 {
		t.Fatalf("expected 3 features (blank and duplicate skipped), got %d", len(features))
	}
	byTitle := map[string]*types.Feature{}
	for _, f := range features {
		byTitle[f.Title] = f
	}

	accounts := byTitle["Accounts"]
	if accounts == nil || accounts.Identifier != prefix+"-F1" {
		t.Fatalf("Accounts feature: %+v", accounts)
	}
	if accounts.Type != types.FeatureTypeCore || accounts.Priority != types.PriorityHigh {
		t.Fatalf("Accounts enums: %+v", accounts)
	}
	if accounts.Status != types.FeatureStatusDiscovery {
		t.Fatalf("materialized features start in DISCOVERY, got %s", accounts.Status)
	}
	if accounts.BlueprintNodeID != "n1" {
		t.Fatalf("blueprint node id lost: %+v", accounts)
	}

	profiles := byTitle["Profiles"]
	if profiles == nil || profiles.Identifier != prefix+"-F2" {
		t.Fatalf("Profiles feature: %+v", profiles)
	}
	if profiles.ParentFeatureID == nil || *profiles.ParentFeatureID != accounts.ID {
		t.Fatalf("Profiles parent not linked: %+v", profiles)
	}

	// Unknown enums coerce to defaults; an unresolvable parent stays top-level.
	ghost := byTitle["Ghost"]
	if ghost == nil || ghost.Identifier != prefix+"-F3" {
		t.Fatalf("Ghost feature: %+v", ghost)
	}
	if ghost.Type != types.FeatureTypeCore || ghost.Priority != types.PriorityMedium {
		t.Fatalf("Ghost enums must default: %+v", ghost)
	}
	if ghost.ParentFeatureID != nil {
		t.Fatalf("Ghost must stay top-level: %+v", ghost)
	}

	var milestones []*types.Milestone
	if err := tx.Where("feature_id = ?", accounts.ID).Order("sort_index ASC").Find(&milestones).Error; err != nil {
		t.Fatalf("load milestones: %v", err)
	}
	if len(milestones) != 2 || milestones[0].Title != "MVP auth" || milestones[0].SortIndex != 0 || milestones[1].SortIndex != 1 {
		t.Fatalf("milestones: %+v", milestones)
	}

	var issues []*types.Issue
	if err := tx.Where("project_id = ?", project.ID).Order("identifier ASC").Find(&issues).Error; err != nil {
		t.Fatalf("load issues: %v", err)
	}
	// Two creatable plan issues plus two sub-issues; blank and orphan skipped,
	// and numbering stays gapless despite the skips.
	if len(issues) != 4 {
		t.Fatalf("expected 4 issue rows, got %d: %+v", len(issues), issues)
	}
	byIdentifier := map[string]*types.Issue{}
	for _, issue := range issues {
		byIdentifier[issue.Identifier] = issue
	}
	login := byIdentifier[prefix+"-1"]
	if login == nil || login.Title != "Build login form" {
		t.Fatalf("login issue: %+v", login)
	}
	if login.MilestoneID == nil || *login.MilestoneID != milestones[0].ID {
		t.Fatalf("login milestone not resolved: %+v", login)
	}
	if login.Priority != types.PriorityUrgent || login.Status != types.IssueStatusTodo {
		t.Fatalf("login enums: %+v", login)
	}

	avatar := byIdentifier[prefix+"-2"]
	if avatar == nil || avatar.Title != "Add avatar upload" {
		t.Fatalf("avatar issue: %+v", avatar)
	}
	if avatar.MilestoneID != nil {
		t.Fatalf("unresolvable milestone must be dropped, not fail: %+v", avatar)
	}

	// Sub-issues carry positional codes and inherit their parent's scope.
	sub1 := byIdentifier[prefix+"-1-S1"]
	sub2 := byIdentifier[prefix+"-1-S2"]
	if sub1 == nil || sub2 == nil {
		t.Fatalf("sub-issues missing: %v", byIdentifier)
	}
	if sub1.Title != "Form layout" || sub2.Title != "Error states" {
		t.Fatalf("sub-issue titles: %q %q", sub1.Title, sub2.Title)
	}
	if sub1.ParentIssueID == nil || *sub1.ParentIssueID != login.ID {
		t.Fatalf("sub-issue parent: %+v", sub1)
	}
	if sub1.FeatureID != accounts.ID || sub1.Priority != login.Priority {
		t.Fatalf("sub-issue inheritance: %+v", sub1)
	}

	var storedIdea types.Idea
	if err := tx.Where("id = ?", idea.ID).First(&storedIdea).Error; err != nil {
		t.Fatalf("reload idea: %v", err)
	}
	if storedIdea.Phase != types.PhaseCompleted {
		t.Fatalf("expected COMPLETED, got %s", storedIdea.Phase)
	}
	if storedIdea.ProjectID == nil || *storedIdea.ProjectID != project.ID {
		t.Fatalf("idea not linked to project: %+v", storedIdea)
	}

	// Converting again is idempotent and returns the same project.
	again, err := svc.ConvertIdea(ctx, user.ID, idea.ID, ConvertRequest{TeamPrefix: prefix})
	if err != nil {
		t.Fatalf("ConvertIdea #2: %v", err)
	}
	if again.ID != project.ID {
		t.Fatalf("expected same project, got %v then %v", project.ID, again.ID)
	}
}

func TestConvertIdeaParentLinksAreOneLevelDeep(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "convert-nesting@test.dev")
	idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseBlueprintGenerated)
	testutil.SeedArtifact(t, ctx, tx, idea.ID, types.ArtifactDiagramKanban, types.ArtifactStatusCompleted, `{
		"features": [
			{"name": "Alpha", "parent": "Beta"},
			{"name": "Beta", "parent": "Alpha"},
			{"name": "Leaf", "parent": "Middle"},
			{"name": "Middle", "parent": "Root"},
			{"name": "Root"}
		]
	}`)

	svc := newMaterializer(t, tx)
	project, err := svc.ConvertIdea(ctx, user.ID, idea.ID, ConvertRequest{
		TeamPrefix:  uniquePrefix(t),
		ProjectName: "Nesting",
	})
	if err != nil {
		t.Fatalf("ConvertIdea: %v", err)
	}

	var features []*types.Feature
	if err := tx.Where("project_id = ?", project.ID).Find(&features).Error; err != nil {
		t.Fatalf("load features: %v", err)
	}
	byTitle := map[string]*types.Feature{}
	for _, f := range features {
		byTitle[f.Title] = f
	}

	// Mutual parents would form a cycle; both stay top-level.
	for _, name := range []string{"Alpha", "Beta"} {
		if f := byTitle[name]; f == nil || f.ParentFeatureID != nil {
			t.Fatalf("%s must stay top-level: %+v", name, f)
		}
	}

	// One level of nesting resolves, deeper chains do not.
	middle := byTitle["Middle"]
	root := byTitle["Root"]
	if middle == nil || root == nil {
		t.Fatalf("chain features missing: %v", byTitle)
	}
	if middle.ParentFeatureID == nil || *middle.ParentFeatureID != root.ID {
		t.Fatalf("Middle must link to its parentless parent: %+v", middle)
	}
	if leaf := byTitle["Leaf"]; leaf == nil || leaf.ParentFeatureID != nil {
		t.Fatalf("Leaf must not extend the chain past one level: %+v", leaf)
	}
}

func TestConvertIdeaValidation(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "convert-validate@test.dev")
	svc := newMaterializer(t, tx)

	t.Run("wrong phase", func(t *testing.T) {
		idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseValidated)
		_, err := svc.ConvertIdea(ctx, user.ID, idea.ID, ConvertRequest{TeamPrefix: "AAA"})
		if apierr.CodeOf(err) != apierr.CodeInvalidPhase {
			t.Fatalf("expected invalid_phase, got %v", err)
		}
	})

	t.Run("bad prefixes", func(t *testing.T) {
		idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseBlueprintGenerated)
		for _, prefix := range []string{"", "9AB", "TOOLONG", "A B", "a-b"} {
			_, err := svc.ConvertIdea(ctx, user.ID, idea.ID, ConvertRequest{TeamPrefix: prefix})
			if apierr.CodeOf(err) != apierr.CodeInvalidInput {
				t.Fatalf("prefix %q: expected invalid_input, got %v", prefix, err)
			}
		}
	})

	t.Run("missing kanban artifact", func(t *testing.T) {
		idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseBlueprintGenerated)
		_, err := svc.ConvertIdea(ctx, user.ID, idea.ID, ConvertRequest{TeamPrefix: "BBB"})
		if apierr.CodeOf(err) != apierr.CodeDependencyNotMet {
			t.Fatalf("expected dependency_not_met, got %v", err)
		}
	})

	t.Run("plan without features", func(t *testing.T) {
		idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseBlueprintGenerated)
		testutil.SeedArtifact(t, ctx, tx, idea.ID, types.ArtifactDiagramKanban, types.ArtifactStatusCompleted, `{"features": []}`)
		_, err := svc.ConvertIdea(ctx, user.ID, idea.ID, ConvertRequest{TeamPrefix: "CCC"})
		if apierr.CodeOf(err) != apierr.CodeMalformedPlan {
			t.Fatalf("expected malformed_plan, got %v", err)
		}
	})
}

func TestConvertIdeaIntoExistingTeamContinuesNumbering(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "convert-existing@test.dev")
	idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseBlueprintGenerated)
	testutil.SeedArtifact(t, ctx, tx, idea.ID, types.ArtifactDiagramKanban, types.ArtifactStatusCompleted,
		`{"features": [{"name": "Billing"}], "issues": [{"title": "Invoice export", "feature": "Billing"}]}`)

	// The team exists with imported identifiers its counters never saw.
	team := testutil.SeedTeam(t, ctx, tx, uniquePrefix(t))
	existingProject := testutil.SeedProject(t, ctx, tx, team.ID)
	testutil.SeedFeature(t, ctx, tx, existingProject.ID, team.ID, team.Prefix+"-F4", "Imported")

	svc := newMaterializer(t, tx)
	project, err := svc.ConvertIdea(ctx, user.ID, idea.ID, ConvertRequest{TeamPrefix: team.Prefix})
	if err != nil {
		t.Fatalf("ConvertIdea: %v", err)
	}
	if project.TeamID != team.ID {
		t.Fatalf("expected reuse of team %v, got %v", team.ID, project.TeamID)
	}

	var billing types.Feature
	if err := tx.Where("project_id = ? AND title = ?", project.ID, "Billing").First(&billing).Error; err != nil {
		t.Fatalf("load feature: %v", err)
	}
	if billing.Identifier != team.Prefix+"-F5" {
		t.Fatalf("numbering must continue past imported rows, got %q", billing.Identifier)
	}
}
