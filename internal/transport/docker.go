package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/melih-ucgun/integra/internal/core"
)

// WebContainer describes the static web server started for a web device.
type WebContainer struct {
	Name     string
	Image    string
	HostPort int
	// HTMLDir is mounted read-only as the server's document root.
	HTMLDir string
}

const htmlRoot = "/usr/share/nginx/html"

// Docker is a session with a remote docker daemon.
type Docker struct {
	cli *client.Client
}

// DialDocker connects to the daemon at tcp://host:port and checks it answers.
func DialDocker(ctx context.Context, host string, port int) (*Docker, error) {
	if port == 0 {
		port = 2375
	}
	url := "tcp://" + net.JoinHostPort(host, strconv.Itoa(port))
	cli, err := client.NewClientWithOpts(client.WithHost(url), client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: create docker client: %v", core.ErrConnection, err)
	}
	core.Track(ctx, cli)

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("%w: docker daemon at %s: %v", core.ErrConnection, url, err)
	}
	return &Docker{cli: cli}, nil
}

// RemoveIfExists stops and removes the named container. It returns the
// short id of the removed container, or "" if there was none.
func (d *Docker) RemoveIfExists(ctx context.Context, name string) (string, error) {
	info, err := d.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("inspect container %q: %w", name, err)
	}
	if info.State != nil && info.State.Running {
		if err := d.cli.ContainerStop(ctx, name, container.StopOptions{}); err != nil && !errdefs.IsNotFound(err) {
			return "", fmt.Errorf("stop container %q: %w", name, err)
		}
	}
	if err := d.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
		return "", fmt.Errorf("remove container %q: %w", name, err)
	}
	return shortID(info.ID), nil
}

// RunWeb creates and starts the web container, pulling the image when the
// daemon does not have it. It returns the short container id.
func (d *Docker) RunWeb(ctx context.Context, w WebContainer) (string, error) {
	port := nat.Port("80/tcp")
	cc := &container.Config{
		Image:        w.Image,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	hc := &container.HostConfig{
		PortBindings: nat.PortMap{port: {{HostPort: strconv.Itoa(w.HostPort)}}},
		Binds:        []string{w.HTMLDir + ":" + htmlRoot + ":ro"},
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
	}

	created, err := d.cli.ContainerCreate(ctx, cc, hc, nil, nil, w.Name)
	if errdefs.IsNotFound(err) {
		if err := d.pull(ctx, w.Image); err != nil {
			return "", err
		}
		created, err = d.cli.ContainerCreate(ctx, cc, hc, nil, nil, w.Name)
	}
	if err != nil {
		return "", fmt.Errorf("%w: create container %q: %v", core.ErrInstall, w.Name, err)
	}
	if err := d.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("%w: start container %q: %v", core.ErrInstall, w.Name, err)
	}
	return shortID(created.ID), nil
}

func (d *Docker) pull(ctx context.Context, img string) error {
	pull, err := d.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("%w: pull image %q: %v", core.ErrInstall, img, err)
	}
	_, _ = io.Copy(io.Discard, pull)
	return pull.Close()
}

func (d *Docker) Close() error {
	return d.cli.Close()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
