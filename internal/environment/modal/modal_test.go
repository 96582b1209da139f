package modal

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spachava753/coderun/internal/models"
)

func TestParseDockerfile(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantBase    string
		wantCmds    []string
		errContains string
	}{
		{
			name: "basic dockerfile",
			content: `
FROM ubuntu:22.04
RUN apt-get update
ENV MY_VAR=test
`,
			wantBase: "ubuntu:22.04",
			wantCmds: []string{"RUN apt-get update", "ENV MY_VAR=test"},
		},
		{
			name: "dockerfile with COPY",
			content: `
FROM python:3.10
COPY . /app
RUN pip install -r requirements.txt
`,
			errContains: "COPY and ADD instructions are not supported",
		},
		{
			name: "dockerfile with ADD",
			content: `
FROM alpine:latest
ADD https://example.com/file.tar.gz /tmp/
`,
			errContains: "COPY and ADD instructions are not supported",
		},
		{
			name: "line continuations",
			content: `
FROM node:18
RUN npm install \
    react \
    react-dom
`,
			wantBase: "node:18",
			wantCmds: []string{"RUN npm install  react  react-dom"},
		},
		{
			name: "missing FROM",
			content: `
RUN echo "hello"
`,
			errContains: "no FROM instruction found",
		},
		{
			name: "later stage replaces earlier one",
			content: `
FROM golang:1.21
RUN go version
FROM alpine:latest
RUN apk add bash
`,
			wantBase: "alpine:latest",
			wantCmds: []string{"RUN apk add bash"},
		},
		{
			name: "comments, blank lines and unsupported instructions",
			content: `
# This is a comment

FROM python:3.9
CMD ["python"]

# Another comment
RUN python --version
`,
			wantBase: "python:3.9",
			wantCmds: []string{"RUN python --version"},
		},
		{
			name: "case insensitive instructions",
			content: `
from node:20
run node -v
workdir /app
`,
			wantBase: "node:20",
			wantCmds: []string{"run node -v", "workdir /app"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, cmds, err := parseDockerfile(tt.content)

			if tt.errContains != "" {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if base != tt.wantBase {
				t.Errorf("expected base %q, got %q", tt.wantBase, base)
			}
			if !reflect.DeepEqual(cmds, tt.wantCmds) {
				t.Errorf("expected commands %q, got %q", tt.wantCmds, cmds)
			}
		})
	}
}

func TestParseProviderConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		want   ProviderConfig
	}{
		{name: "nil config", config: nil, want: ProviderConfig{}},
		{
			name:   "single region",
			config: map[string]any{"app_name": "agents", "region": "us-east", "verbose": true},
			want:   ProviderConfig{AppName: "agents", Regions: []string{"us-east"}, Verbose: true},
		},
		{
			name:   "region list skips non-strings",
			config: map[string]any{"regions": []any{"us-west", 3, "eu-west"}},
			want:   ProviderConfig{Regions: []string{"us-west", "eu-west"}},
		},
		{
			name:   "wrong types ignored",
			config: map[string]any{"app_name": 42, "verbose": "yes"},
			want:   ProviderConfig{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProviderConfig(tt.config)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseProviderConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// mockConfigReader is a test double for ConfigReader.
type mockConfigReader struct {
	output []byte
	err    error
}

func (m *mockConfigReader) ReadConfig() ([]byte, error) {
	return m.output, m.err
}

func TestCheckImageBuilderVersion(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		readErr     error
		errContains string
	}{
		{name: "valid version", output: `{"image_builder_version": "2025.06"}`},
		{name: "newer version", output: `{"image_builder_version": "2025.12"}`},
		{
			name:        "version not set - null",
			output:      `{"image_builder_version": null}`,
			errContains: "image_builder_version is not set",
		},
		{
			name:        "version not set - empty string",
			output:      `{"image_builder_version": ""}`,
			errContains: "image_builder_version is not set",
		},
		{
			name:        "missing field",
			output:      `{}`,
			errContains: "image_builder_version is not set",
		},
		{
			name:        "version too old",
			output:      `{"image_builder_version": "2024.10"}`,
			errContains: "is too old",
		},
		{
			name:        "cli error",
			readErr:     errors.New("modal CLI not found"),
			errContains: "failed to get modal config",
		},
		{
			name:        "invalid json",
			output:      `not valid json`,
			errContains: "failed to parse modal config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkImageBuilderVersion(&mockConfigReader{output: []byte(tt.output), err: tt.readErr})

			if tt.errContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfg         models.EnvironmentConfig
		errContains string
	}{
		{name: "no image", cfg: models.EnvironmentConfig{}, errContains: "requires an image"},
		{name: "bad memory", cfg: models.EnvironmentConfig{Image: "python:3.11", Memory: "lots"}, errContains: "parsing memory"},
		{name: "bad lifetime", cfg: models.EnvironmentConfig{Image: "python:3.11", ContainerTimeout: "forever"}, errContains: "container_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("New() error = %v, want it to contain %q", err, tt.errContains)
			}
		})
	}
}
