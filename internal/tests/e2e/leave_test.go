//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/leave-notifier/apiserver/config"
	"github.com/leave-notifier/apiserver/internal/db"
	"github.com/leave-notifier/apiserver/internal/server"
	_ "github.com/lib/pq"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestLeaveLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()
	employee := fmt.Sprintf("employee_%d", suffix)
	manager := fmt.Sprintf("manager_%d", suffix)
	password := "testpass123!"

	employeeToken, err := registerUser(t, baseURL, employee, password)
	if err != nil {
		t.Fatalf("register employee: %v", err)
	}

	managerToken, err := registerUser(t, baseURL, manager, password)
	if err != nil {
		t.Fatalf("register manager: %v", err)
	}
	if err := promoteToSuperUser(manager); err != nil {
		t.Fatalf("promote manager: %v", err)
	}
	// Tokens embed the super user claim, so re-login after promotion.
	managerToken, err = loginUser(t, baseURL, manager, password)
	if err != nil {
		t.Fatalf("re-login manager: %v", err)
	}

	created, err := createLeave(t, baseURL, employeeToken)
	if err != nil {
		t.Fatalf("create leave: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected leave ID to be set")
	}
	if created.Status != "pending" {
		t.Fatalf("expected new leave to be pending, got %q", created.Status)
	}

	fetched, err := getLeave(t, baseURL, employeeToken, created.ID, http.StatusOK)
	if err != nil {
		t.Fatalf("get leave as owner: %v", err)
	}
	if fetched.Username != employee {
		t.Fatalf("unexpected leave owner: %q", fetched.Username)
	}

	if _, err := decideLeave(t, baseURL, employeeToken, created.ID, "approved", http.StatusForbidden); err != nil {
		t.Fatalf("decide as employee should be forbidden: %v", err)
	}

	decided, err := decideLeave(t, baseURL, managerToken, created.ID, "approved", http.StatusOK)
	if err != nil {
		t.Fatalf("decide as manager: %v", err)
	}
	if decided.Status != "approved" {
		t.Fatalf("expected approved leave, got %q", decided.Status)
	}

	if _, err := decideLeave(t, baseURL, managerToken, created.ID, "denied", http.StatusBadRequest); err != nil {
		t.Fatalf("re-deciding should be rejected: %v", err)
	}

	if err := deleteLeave(t, baseURL, managerToken, created.ID); err != nil {
		t.Fatalf("delete leave: %v", err)
	}
	if _, err := getLeave(t, baseURL, managerToken, created.ID, http.StatusNotFound); err != nil {
		t.Fatalf("expected deleted leave to be missing: %v", err)
	}
}

func TestUsersEndpointPolicy(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()
	username := fmt.Sprintf("plain_%d", suffix)
	password := "testpass123!"

	token, err := registerUser(t, baseURL, username, password)
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	status, _, err := doJSON(t, http.MethodGet, baseURL+"/api/users", token, nil)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for non super user, got %d", status)
	}

	if err := promoteToSuperUser(username); err != nil {
		t.Fatalf("promote user: %v", err)
	}
	token, err = loginUser(t, baseURL, username, password)
	if err != nil {
		t.Fatalf("re-login user: %v", err)
	}

	status, body, err := doJSON(t, http.MethodGet, baseURL+"/api/users/"+username, token, nil)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("expected 200 for super user, got %d: %s", status, body)
	}

	missing := fmt.Sprintf("missing_%d", suffix)
	status, body, err = doJSON(t, http.MethodGet, baseURL+"/api/users/"+missing, token, nil)
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for missing user, got %d", status)
	}
	if !strings.Contains(body, missing) {
		t.Fatalf("expected 404 body to name the user, got %s", body)
	}
}

type leaveResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

type authResponse struct {
	Token string `json:"token"`
}

func registerUser(t *testing.T, baseURL, username, password string) (string, error) {
	t.Helper()

	payload := map[string]string{
		"username": username,
		"email":    fmt.Sprintf("%s@example.com", username),
		"name":     "Test User",
		"password": password,
	}
	status, body, err := doJSON(t, http.MethodPost, baseURL+"/auth/register", "", payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("register status %d: %s", status, body)
	}

	var parsed authResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in register response")
	}
	return parsed.Token, nil
}

func loginUser(t *testing.T, baseURL, username, password string) (string, error) {
	t.Helper()

	payload := map[string]string{
		"username": username,
		"password": password,
	}
	status, body, err := doJSON(t, http.MethodPost, baseURL+"/auth/login", "", payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login status %d: %s", status, body)
	}

	var parsed authResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return "", err
	}
	return parsed.Token, nil
}

func promoteToSuperUser(username string) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = conn.ExecContext(ctx, "UPDATE users SET super_user = TRUE, updated_at = NOW() WHERE username = $1", username)
	return err
}

func createLeave(t *testing.T, baseURL, token string) (leaveResponse, error) {
	t.Helper()

	payload := map[string]string{
		"from":          "2026-09-07T00:00:00Z",
		"to":            "2026-09-11T00:00:00Z",
		"justification": "family event",
		"means":         "email",
	}
	status, body, err := doJSON(t, http.MethodPost, baseURL+"/api/leaves", token, payload)
	if err != nil {
		return leaveResponse{}, err
	}
	if status != http.StatusCreated {
		return leaveResponse{}, fmt.Errorf("create leave status %d: %s", status, body)
	}

	var parsed leaveResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return leaveResponse{}, err
	}
	return parsed, nil
}

func getLeave(t *testing.T, baseURL, token string, id int, wantStatus int) (leaveResponse, error) {
	t.Helper()

	status, body, err := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/leaves/%d", baseURL, id), token, nil)
	if err != nil {
		return leaveResponse{}, err
	}
	if status != wantStatus {
		return leaveResponse{}, fmt.Errorf("get leave status %d, want %d: %s", status, wantStatus, body)
	}
	if wantStatus != http.StatusOK {
		return leaveResponse{}, nil
	}

	var parsed leaveResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return leaveResponse{}, err
	}
	return parsed, nil
}

func decideLeave(t *testing.T, baseURL, token string, id int, decision string, wantStatus int) (leaveResponse, error) {
	t.Helper()

	payload := map[string]string{"status": decision}
	status, body, err := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/leaves/%d/status", baseURL, id), token, payload)
	if err != nil {
		return leaveResponse{}, err
	}
	if status != wantStatus {
		return leaveResponse{}, fmt.Errorf("decide leave status %d, want %d: %s", status, wantStatus, body)
	}
	if wantStatus != http.StatusOK {
		return leaveResponse{}, nil
	}

	var parsed leaveResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return leaveResponse{}, err
	}
	return parsed, nil
}

func deleteLeave(t *testing.T, baseURL, token string, id int) error {
	t.Helper()

	status, body, err := doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/leaves/%d", baseURL, id), token, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("delete leave status %d: %s", status, body)
	}
	return nil
}

func doJSON(t *testing.T, method, url, token string, payload any) (int, string, error) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, "", err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return 0, "", err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, strings.TrimSpace(string(data)), nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("TOKENS_KEY", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "leavenotifier")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "leavenotifier_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("NOTIFY_BACKEND", "none")
	_ = os.Setenv("STORAGE_BACKEND", "none")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
