package runner

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const workspaceDir = "/workspace"

// DockerConfig holds Docker executor configuration
type DockerConfig struct {
	Image      string
	MemoryMB   int64
	CPULimit   float64
	NetworkOff bool
}

// DockerPythonExecutor runs each Python execution in a throwaway container
type DockerPythonExecutor struct {
	client *client.Client
	cfg    DockerConfig
}

// NewDockerPythonExecutor connects to the Docker daemon and verifies it is reachable
func NewDockerPythonExecutor(cfg DockerConfig) (*DockerPythonExecutor, error) {
	if cfg.Image == "" {
		cfg.Image = DefaultLanguageConfigs()[LanguagePython].DockerImage
	}
	if cfg.MemoryMB == 0 {
		cfg.MemoryMB = 256
	}
	if cfg.CPULimit == 0 {
		cfg.CPULimit = 0.5
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	return &DockerPythonExecutor{client: cli, cfg: cfg}, nil
}

// Language returns the language this executor handles
func (e *DockerPythonExecutor) Language() Language {
	return LanguagePython
}

// Execute copies the code into a new container, runs it and collects output
func (e *DockerPythonExecutor) Execute(ctx context.Context, code string) (*Output, error) {
	if err := e.ensureImage(ctx); err != nil {
		return nil, fmt.Errorf("ensure image: %w", err)
	}

	resp, err := e.client.ContainerCreate(ctx, &container.Config{
		Image:           e.cfg.Image,
		Cmd:             []string{"python3", harnessFile, mainFile},
		WorkingDir:      workspaceDir,
		NetworkDisabled: e.cfg.NetworkOff,
		Labels: map[string]string{
			"codepractice.runner": "true",
			"codepractice.lang":   LanguagePython.String(),
		},
	}, &container.HostConfig{
		Resources: container.Resources{
			Memory:   e.cfg.MemoryMB * 1024 * 1024,
			NanoCPUs: int64(e.cfg.CPULimit * 1e9),
		},
	}, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	defer e.remove(resp.ID)

	archive, err := tarFiles(map[string]string{
		harnessFile: pythonHarness,
		mainFile:    code,
	})
	if err != nil {
		return nil, err
	}
	if err := e.client.CopyToContainer(ctx, resp.ID, workspaceDir, archive, container.CopyToContainerOptions{}); err != nil {
		return nil, fmt.Errorf("copy code: %w", err)
	}

	start := time.Now()
	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	waitCh, errCh := e.client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case res := <-waitCh:
		exitCode = res.StatusCode
	case err := <-errCh:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Output{Err: timeoutMessage, Duration: time.Since(start)}, nil
		}
		return nil, fmt.Errorf("wait container: %w", err)
	case <-ctx.Done():
		return &Output{Err: timeoutMessage, Duration: time.Since(start)}, nil
	}
	duration := time.Since(start)

	stdout, stderr, err := e.logs(resp.ID)
	if err != nil {
		return nil, err
	}

	if exitCode != 0 {
		msg := stderr
		if msg == "" {
			msg = fmt.Sprintf("process exited with status %d", exitCode)
		}
		return &Output{Err: strings.TrimSpace(msg), Duration: duration}, nil
	}

	return &Output{Stdout: stdout, Duration: duration}, nil
}

// logs reads the container's demultiplexed stdout and stderr
func (e *DockerPythonExecutor) logs(containerID string) (string, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reader, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("read logs: %w", err)
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return "", "", fmt.Errorf("demux logs: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}

// remove force-removes a container, using a fresh context so cleanup still
// happens after the execution context expired
func (e *DockerPythonExecutor) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		slog.Warn("failed to remove container", "container_id", containerID, "error", err)
	}
}

// Close closes the Docker client
func (e *DockerPythonExecutor) Close() error {
	return e.client.Close()
}

func (e *DockerPythonExecutor) ensureImage(ctx context.Context) error {
	if _, err := e.client.ImageInspect(ctx, e.cfg.Image); err == nil {
		return nil
	}

	slog.Info("pulling runner image", "image", e.cfg.Image)
	reader, err := e.client.ImagePull(ctx, e.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", e.cfg.Image, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func tarFiles(files map[string]string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for name, content := range files {
		header := &tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("write tar content: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	return &buf, nil
}

var _ Executor = (*DockerPythonExecutor)(nil)
