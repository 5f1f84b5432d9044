package procore

import (
	"context"
	"fmt"
	"strings"
)

// The calls below read Procore directly with the user's active grant and
// return its data as is. Nothing is written locally.

// Me returns the Procore user behind the active connection.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	conn, err := s.grant(ctx, userID)
	if err != nil {
		return User{}, err
	}
	return s.client.Me(ctx, conn.AccessToken)
}

// RemoteCompanies lists every company the user can access in Procore.
func (s *Service) RemoteCompanies(ctx context.Context, userID string) ([]RemoteCompany, error) {
	conn, err := s.grant(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.client.Companies(ctx, conn.AccessToken)
}

// RemoteProjects lists Procore projects. companyID is a Procore company id;
// empty means the active company.
func (s *Service) RemoteProjects(ctx context.Context, userID, companyID string) ([]RemoteProject, error) {
	conn, err := s.grant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if companyID, err = s.procoreCompany(ctx, conn, companyID); err != nil {
		return nil, err
	}
	return s.client.Projects(ctx, conn.AccessToken, companyID)
}

func (s *Service) RemoteProject(ctx context.Context, userID, projectID, companyID string) (RemoteProject, error) {
	conn, err := s.grant(ctx, userID)
	if err != nil {
		return RemoteProject{}, err
	}
	if companyID, err = s.procoreCompany(ctx, conn, companyID); err != nil {
		return RemoteProject{}, err
	}
	return s.client.Project(ctx, conn.AccessToken, companyID, projectID)
}

// ProjectTeam lists the members of a Procore project.
func (s *Service) ProjectTeam(ctx context.Context, userID, projectID, companyID string) ([]ProjectUser, error) {
	conn, err := s.grant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if companyID, err = s.procoreCompany(ctx, conn, companyID); err != nil {
		return nil, err
	}
	return s.client.ProjectUsers(ctx, conn.AccessToken, companyID, projectID)
}

// grant is the active connection with a usable access token.
func (s *Service) grant(ctx context.Context, userID string) (Connection, error) {
	conn, err := s.active(ctx, userID)
	if err != nil {
		return Connection{}, err
	}
	return s.fresh(ctx, conn)
}

func (s *Service) procoreCompany(ctx context.Context, conn Connection, override string) (string, error) {
	if id := strings.TrimSpace(override); id != "" {
		return id, nil
	}
	company, err := s.stores.Companies.Get(ctx, conn.CompanyID)
	if err != nil {
		return "", fmt.Errorf("load company: %w", err)
	}
	return company.ProcoreID, nil
}
