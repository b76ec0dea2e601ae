package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

var teamPrefixPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,4}$`)

type ConvertRequest struct {
	TeamPrefix  string `json:"team_prefix"`
	TeamName    string `json:"team_name"`
	ProjectName string `json:"project_name"`
}

// MaterializerService turns a blueprint plan into a real project graph:
// features, milestones, issues, sub-issues. The whole conversion commits in
// one transaction; identifiers come from one allocator reservation per kind.
type MaterializerService interface {
	ConvertIdea(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, req ConvertRequest) (*types.Project, error)
	// MaterializePlan writes the plan into an existing project inside the
	// caller's transaction. Per-item problems degrade, never reject the batch.
	MaterializePlan(ctx context.Context, tx *gorm.DB, project *types.Project, team *types.Team, plan *types.BlueprintPlan) error
}

type materializerService struct {
	log        *logger.Logger
	db         *gorm.DB
	ideas      IdeaService
	artifacts  repos.ArtifactRepo
	teams      repos.TeamRepo
	projects   repos.ProjectRepo
	features   repos.FeatureRepo
	milestones repos.MilestoneRepo
	issues     repos.IssueRepo
	allocator  IdentifierAllocator
}

func NewMaterializerService(
	log *logger.Logger,
	db *gorm.DB,
	ideas IdeaService,
	artifacts repos.ArtifactRepo,
	teams repos.TeamRepo,
	projects repos.ProjectRepo,
	features repos.FeatureRepo,
	milestones repos.MilestoneRepo,
	issues repos.IssueRepo,
	allocator IdentifierAllocator,
) MaterializerService {
	return &materializerService{
		log:        log.With("service", "MaterializerService"),
		db:         db,
		ideas:      ideas,
		artifacts:  artifacts,
		teams:      teams,
		projects:   projects,
		features:   features,
		milestones: milestones,
		issues:     issues,
		allocator:  allocator,
	}
}

func (s *materializerService) ConvertIdea(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, req ConvertRequest) (*types.Project, error) {
	idea, err := s.ideas.LoadOwned(ctx, nil, userID, ideaID)
	if err != nil {
		return nil, err
	}
	if idea.Phase == types.PhaseCompleted && idea.ProjectID != nil {
		return s.projects.GetByID(ctx, nil, *idea.ProjectID)
	}
	if !idea.Phase.CanTransition(types.PhaseCompleted) {
		return nil, apierr.InvalidPhase(string(idea.Phase), string(types.PhaseCompleted))
	}

	prefix := strings.ToUpper(strings.TrimSpace(req.TeamPrefix))
	if !teamPrefixPattern.MatchString(prefix) {
		return nil, apierr.InvalidInput("team prefix must be 1-5 characters, letters and digits, starting with a letter")
	}

	kanban, err := s.artifacts.GetByIdeaAndType(ctx, nil, ideaID, types.ArtifactDiagramKanban)
	if err != nil {
		return nil, err
	}
	if kanban == nil || kanban.Status != types.ArtifactStatusCompleted {
		return nil, apierr.DependencyNotMet(string(types.ArtifactDiagramKanban))
	}
	plan := types.DecodeBlueprintPlan(kanban.ContentJSON)
	if len(plan.Features) == 0 {
		return nil, apierr.MalformedPlan(fmt.Errorf("blueprint plan has no features"))
	}

	projectName := strings.TrimSpace(req.ProjectName)
	if projectName == "" {
		projectName = fmt.Sprintf("Project %s", prefix)
	}

	var project *types.Project
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := s.teams.GetByPrefix(ctx, tx, prefix)
		if err != nil {
			return err
		}
		if team == nil {
			name := strings.TrimSpace(req.TeamName)
			if name == "" {
				name = prefix
			}
			created, err := s.teams.Create(ctx, tx, []*types.Team{{
				ID:     uuid.New(),
				Name:   name,
				Prefix: prefix,
			}})
			if err != nil {
				return apierr.AllocationConflict(prefix)
			}
			team = created[0]
		} else {
			// An existing team may hold imported identifiers the counters
			// never saw.
			if err := s.allocator.SeedFromExisting(ctx, tx, team.ID); err != nil {
				return err
			}
		}

		createdProjects, err := s.projects.Create(ctx, tx, []*types.Project{{
			ID:          uuid.New(),
			TeamID:      team.ID,
			Name:        projectName,
			Description: ideaDescription(idea),
		}})
		if err != nil {
			return err
		}
		project = createdProjects[0]

		if err := s.MaterializePlan(ctx, tx, project, team, plan); err != nil {
			return err
		}
		if err := s.setIdeaProject(ctx, tx, idea, project.ID); err != nil {
			return err
		}
		return s.ideas.AdvancePhase(ctx, tx, idea, types.PhaseCompleted)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *materializerService) setIdeaProject(ctx context.Context, tx *gorm.DB, idea *types.Idea, projectID uuid.UUID) error {
	if err := tx.WithContext(ctx).
		Model(&types.Idea{}).
		Where("id = ?", idea.ID).
		Update("project_id", projectID).Error; err != nil {
		return err
	}
	idea.ProjectID = &projectID
	return nil
}

func (s *materializerService) MaterializePlan(ctx context.Context, tx *gorm.DB, project *types.Project, team *types.Team, plan *types.BlueprintPlan) error {
	featureByName := map[string]*types.Feature{}
	existing, err := s.features.GetByProjectID(ctx, tx, project.ID)
	if err != nil {
		return err
	}
	for _, f := range existing {
		featureByName[f.Title] = f
	}

	planFeatures := make([]types.PlanFeature, 0, len(plan.Features))
	for _, pf := range plan.Features {
		if strings.TrimSpace(pf.Name) == "" {
			s.log.Warn("skipping plan feature without a name", "project_id", project.ID)
			continue
		}
		if _, dup := featureByName[pf.Name]; dup {
			s.log.Warn("skipping duplicate plan feature", "project_id", project.ID, "name", pf.Name)
			continue
		}
		planFeatures = append(planFeatures, pf)
		featureByName[pf.Name] = nil // reserved, resolved in pass 1
	}

	var featureIDs []string
	if len(planFeatures) > 0 {
		featureIDs, err = s.allocator.ReserveBlock(ctx, tx, team.ID, IdentifierKindFeature, len(planFeatures))
		if err != nil {
			return err
		}
	}

	// Pass 1: create every feature without parent links so forward references
	// by name can resolve in pass 2 (one level deep).
	rows := make([]*types.Feature, 0, len(planFeatures))
	for i, pf := range planFeatures {
		ftype, _ := types.ParseFeatureType(pf.Type)
		priority, _ := types.ParsePriority(pf.Priority)
		row := &types.Feature{
			ID:              uuid.New(),
			ProjectID:       project.ID,
			TeamID:          team.ID,
			Identifier:      featureIDs[i],
			Title:           pf.Name,
			Description:     pf.Description,
			Type:            ftype,
			Status:          types.FeatureStatusDiscovery,
			Priority:        priority,
			BlueprintNodeID: pf.NodeID,
		}
		rows = append(rows, row)
		featureByName[pf.Name] = row
	}
	if len(rows) > 0 {
		if _, err := s.features.Create(ctx, tx, rows); err != nil {
			return err
		}
	}

	parentDecl := map[string]string{}
	for _, pf := range planFeatures {
		parentDecl[pf.Name] = pf.Parent
	}

	// Pass 2: link parents, one level of nesting per batch. A parent created
	// in this batch is only linkable if it declares no parent of its own;
	// deeper chains (and mutual parent pairs) stay top-level. Unresolvable
	// parent names are tolerated the same way.
	for i, pf := range planFeatures {
		if pf.Parent == "" {
			continue
		}
		parent := featureByName[pf.Parent]
		if parent == nil {
			s.log.Warn("unresolved parent feature", "name", pf.Name, "parent", pf.Parent)
			continue
		}
		if parent.ID == rows[i].ID {
			continue
		}
		if decl, inBatch := parentDecl[pf.Parent]; inBatch && decl != "" {
			s.log.Warn("parent feature is itself nested, keeping feature top-level", "name", pf.Name, "parent", pf.Parent)
			continue
		}
		if err := s.features.UpdateFields(ctx, tx, rows[i].ID, map[string]interface{}{
			"parent_feature_id": parent.ID,
		}); err != nil {
			return err
		}
		rows[i].ParentFeatureID = &parent.ID
	}

	milestoneByKey := map[string]*types.Milestone{}
	sortIndexByFeature := map[uuid.UUID]int{}
	var milestoneRows []*types.Milestone
	for _, pm := range plan.Milestones {
		feature := featureByName[pm.Feature]
		if feature == nil {
			s.log.Warn("skipping milestone with unresolved feature", "milestone", pm.Title, "feature", pm.Feature)
			continue
		}
		row := &types.Milestone{
			ID:          uuid.New(),
			FeatureID:   feature.ID,
			Title:       pm.Title,
			Description: pm.Description,
			SortIndex:   sortIndexByFeature[feature.ID],
		}
		sortIndexByFeature[feature.ID]++
		milestoneRows = append(milestoneRows, row)
		milestoneByKey[pm.Feature+"/"+pm.Title] = row
	}
	if len(milestoneRows) > 0 {
		if _, err := s.milestones.Create(ctx, tx, milestoneRows); err != nil {
			return err
		}
	}

	planIssues := make([]types.PlanIssue, 0, len(plan.Issues))
	issueFeatures := make([]*types.Feature, 0, len(plan.Issues))
	for _, pi := range plan.Issues {
		if strings.TrimSpace(pi.Title) == "" {
			continue
		}
		feature := featureByName[pi.Feature]
		if feature == nil {
			s.log.Warn("skipping issue with unresolved feature", "issue", pi.Title, "feature", pi.Feature)
			continue
		}
		planIssues = append(planIssues, pi)
		issueFeatures = append(issueFeatures, feature)
	}

	var issueIDs []string
	if len(planIssues) > 0 {
		issueIDs, err = s.allocator.ReserveBlock(ctx, tx, team.ID, IdentifierKindIssue, len(planIssues))
		if err != nil {
			return err
		}
	}

	for i, pi := range planIssues {
		feature := issueFeatures[i]
		itype, _ := types.ParseIssueType(pi.Type)
		priority, _ := types.ParsePriority(pi.Priority)
		issue := &types.Issue{
			ID:          uuid.New(),
			ProjectID:   project.ID,
			TeamID:      team.ID,
			Identifier:  issueIDs[i],
			FeatureID:   feature.ID,
			Title:       pi.Title,
			Description: pi.Description,
			Type:        itype,
			Status:      types.IssueStatusTodo,
			Priority:    priority,
		}
		if pi.Milestone != "" {
			if m := milestoneByKey[pi.Feature+"/"+pi.Milestone]; m != nil {
				issue.MilestoneID = &m.ID
			}
		}
		if _, err := s.issues.Create(ctx, tx, []*types.Issue{issue}); err != nil {
			return err
		}

		var subRows []*types.Issue
		for n, sub := range pi.SubIssues {
			if strings.TrimSpace(sub.Title) == "" {
				continue
			}
			stype, _ := types.ParseIssueType(sub.Type)
			subRows = append(subRows, &types.Issue{
				ID:            uuid.New(),
				ProjectID:     project.ID,
				TeamID:        team.ID,
				Identifier:    fmt.Sprintf("%s-S%d", issue.Identifier, n+1),
				FeatureID:     feature.ID,
				MilestoneID:   issue.MilestoneID,
				ParentIssueID: &issue.ID,
				Title:         sub.Title,
				Description:   sub.Description,
				Type:          stype,
				Status:        types.IssueStatusTodo,
				Priority:      issue.Priority,
			})
		}
		if len(subRows) > 0 {
			if _, err := s.issues.Create(ctx, tx, subRows); err != nil {
				return err
			}
		}
	}
	return nil
}
