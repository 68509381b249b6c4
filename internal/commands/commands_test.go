package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diogo/studychat/internal/api"
	"github.com/diogo/studychat/internal/config"
	"github.com/diogo/studychat/internal/conversation"
	"github.com/diogo/studychat/internal/logging"
	"github.com/diogo/studychat/internal/models"
	"github.com/diogo/studychat/internal/tui"
)

const helloStream = "data: {\"type\":\"start\",\"topicId\":\"t1\"}\n\n" +
	"data: {\"type\":\"chunk\",\"content\":\"Hel\"}\n\n" +
	"data: {\"type\":\"chunk\",\"content\":\"lo\"}\n\n" +
	"data: {\"type\":\"end\",\"topicId\":\"t1\"}\n\n"

const errorStream = "data: {\"type\":\"start\",\"topicId\":\"t1\"}\n\n" +
	"data: {\"type\":\"chunk\",\"content\":\"par\"}\n\n" +
	"data: {\"type\":\"error\",\"content\":\"rate limited\"}\n\n"

func sampleMock() *api.MockClient {
	return &api.MockClient{
		StreamBody: helloStream,
		Topics: []models.TopicInfo{
			{ID: "t1", Name: "Biology", Preview: "What is a cell?"},
			{ID: "t2", Name: "Chemistry", Preview: "New Topic"},
		},
		Topic: &models.Topic{ID: "t1", Name: "Biology", Messages: []models.Message{
			{Role: models.RoleUser, Content: "What is a cell?"},
			{Role: models.RoleAssistant, Content: "The basic unit of life."},
		}},
	}
}

func newTestDeps(t *testing.T, mock *api.MockClient) *Dependencies {
	t.Helper()
	t.Setenv(config.EnvHome, t.TempDir())

	cfg := config.DefaultConfig()
	return &Dependencies{
		LoadConfig: func() (config.Config, error) { return cfg, nil },
		NewClient: func(cfg config.Config, logger *slog.Logger) (api.ClientInterface, error) {
			return mock, nil
		},
		RunTUI: func(ctx context.Context, backend tui.Backend, controller *conversation.Controller, opts tui.Options) error {
			return nil
		},
		IsTTY:  func() bool { return false },
		Logger: logging.Discard(),
	}
}

func execute(t *testing.T, deps *Dependencies, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd(deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	cmd := NewRootCmd(NewDependencies())
	if cmd.Use != "studychat [message]" {
		t.Errorf("Expected use 'studychat [message]', got %s", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("descriptions should not be empty")
	}

	for _, name := range []string{"ask", "chat", "topics", "ingest", "health", "config"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("missing subcommand %s", name)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	out, _, err := execute(t, newTestDeps(t, sampleMock()), "", "--version")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "studychat "+Version) {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestRootCommand_NoInputShowsHelp(t *testing.T) {
	mock := sampleMock()
	out, _, err := execute(t, newTestDeps(t, mock), "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "Usage:") {
		t.Errorf("expected help output, got %q", out)
	}
	if mock.Calls() != 0 {
		t.Error("no message should be sent")
	}
}

func TestAsk_StreamsReplyToStdout(t *testing.T) {
	mock := sampleMock()
	out, _, err := execute(t, newTestDeps(t, mock), "", "ask", "-t", "Biology", "hi")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if out != "Hello\n" {
		t.Errorf("stdout = %q, want %q", out, "Hello\n")
	}
	if mock.LastTopicID != "t1" || mock.LastMessage != "hi" {
		t.Errorf("sent %q to %s", mock.LastMessage, mock.LastTopicID)
	}
}

func TestAsk_RootReadsStdin(t *testing.T) {
	mock := sampleMock()
	_, _, err := execute(t, newTestDeps(t, mock), "  what is osmosis?\n", "-t", "1")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if mock.LastMessage != "what is osmosis?" {
		t.Errorf("message = %q", mock.LastMessage)
	}
}

func TestAsk_TopicSelection(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		defaultRef  string
		wantCreated []string
	}{
		{"creates a topic without any reference", []string{"ask", "hi"}, "", []string{""}},
		{"uses default topic", []string{"ask", "hi"}, "Biology", nil},
		{"new with name", []string{"ask", "--new", "-t", "Physics", "hi"}, "Biology", []string{"Physics"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := sampleMock()
			deps := newTestDeps(t, mock)
			cfg := config.DefaultConfig()
			cfg.DefaultTopic = tt.defaultRef
			deps.LoadConfig = func() (config.Config, error) { return cfg, nil }

			_, stderr, err := execute(t, deps, "", tt.args...)
			if err != nil {
				t.Fatalf("ask failed: %v", err)
			}
			if len(mock.CreatedNames) != len(tt.wantCreated) {
				t.Fatalf("created %v, want %v", mock.CreatedNames, tt.wantCreated)
			}
			for i := range tt.wantCreated {
				if mock.CreatedNames[i] != tt.wantCreated[i] {
					t.Errorf("created %v, want %v", mock.CreatedNames, tt.wantCreated)
				}
			}
			if len(tt.wantCreated) > 0 && !strings.Contains(stderr, "New topic") {
				t.Errorf("stderr should announce the new topic: %q", stderr)
			}
		})
	}
}

func TestAsk_ErrorEvent(t *testing.T) {
	mock := sampleMock()
	mock.StreamBody = errorStream

	out, stderr, err := execute(t, newTestDeps(t, mock), "", "ask", "-t", "1", "hi")
	if err == nil {
		t.Fatal("expected an error")
	}
	var reported reportedError
	if !errors.As(err, &reported) {
		t.Errorf("error should be marked as reported: %T", err)
	}
	if out != "par\n" {
		t.Errorf("stdout = %q, want partial reply", out)
	}
	if !strings.Contains(stderr, "rate limited") {
		t.Errorf("stderr should show the server message: %q", stderr)
	}
}

func TestAsk_TransportError(t *testing.T) {
	mock := sampleMock()
	mock.SendErr = errors.New("connection refused")

	_, stderr, err := execute(t, newTestDeps(t, mock), "", "ask", "-t", "1", "hi")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(stderr, "Reply failed") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestAsk_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.md")
	out, _, err := execute(t, newTestDeps(t, sampleMock()), "", "ask", "-t", "1", "-o", path, "hi")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if out != "" {
		t.Errorf("stdout should stay empty with --output, got %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	if string(data) != "Hello" {
		t.Errorf("file content = %q", data)
	}
}

func TestAsk_EmptyMessage(t *testing.T) {
	mock := sampleMock()
	_, _, err := execute(t, newTestDeps(t, mock), "   ", "ask")
	if err == nil || !strings.Contains(err.Error(), "message cannot be empty") {
		t.Errorf("expected empty message error, got %v", err)
	}
	if mock.Calls() != 0 {
		t.Error("no message should be sent")
	}
}

func TestAsk_UnknownTopic(t *testing.T) {
	_, _, err := execute(t, newTestDeps(t, sampleMock()), "", "ask", "-t", "History", "hi")
	if err == nil || !strings.Contains(err.Error(), "failed to resolve topic") {
		t.Errorf("expected resolve error, got %v", err)
	}
}

func TestInvalidServerFlag(t *testing.T) {
	_, _, err := execute(t, newTestDeps(t, sampleMock()), "", "--server", "ftp://nowhere", "topics", "list")
	if err == nil || !strings.Contains(err.Error(), "invalid --server") {
		t.Errorf("expected --server error, got %v", err)
	}
}

func TestServerFlagReachesClient(t *testing.T) {
	mock := sampleMock()
	deps := newTestDeps(t, mock)
	var got string
	deps.NewClient = func(cfg config.Config, logger *slog.Logger) (api.ClientInterface, error) {
		got = cfg.ServerURL
		return mock, nil
	}

	if _, _, err := execute(t, deps, "", "-s", "http://10.0.0.5:8000", "ingest"); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if got != "http://10.0.0.5:8000" {
		t.Errorf("server url = %q", got)
	}
	if !mock.CloseCalled {
		t.Error("client should be closed after the command")
	}
}

func TestChatCommand(t *testing.T) {
	mock := sampleMock()
	deps := newTestDeps(t, mock)
	cfg := config.DefaultConfig()
	cfg.DefaultTopic = "Chemistry"
	deps.LoadConfig = func() (config.Config, error) { return cfg, nil }

	var gotOpts tui.Options
	deps.RunTUI = func(ctx context.Context, backend tui.Backend, controller *conversation.Controller, opts tui.Options) error {
		gotOpts = opts
		if controller == nil || backend == nil {
			t.Error("chat should receive a backend and a controller")
		}
		return nil
	}

	if _, _, err := execute(t, deps, "", "chat"); err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if gotOpts.Topic != "Chemistry" || gotOpts.Theme != "tokyonight" {
		t.Errorf("unexpected options: %+v", gotOpts)
	}

	if _, _, err := execute(t, deps, "", "chat", "-t", "@first"); err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if gotOpts.Topic != "@first" {
		t.Errorf("--topic should win over default_topic, got %q", gotOpts.Topic)
	}
}
