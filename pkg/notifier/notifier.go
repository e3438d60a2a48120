// Package notifier sends desktop notifications when a workspace build
// finishes. Implements the orchestrator's Notifier interface.
package notifier

import (
	"fmt"
	"strings"

	"github.com/gen2brain/beeep"

	"github.com/masonry-build/masonry/pkg/logger"
)

// WorkspaceNotifier reports workspace-level outcomes to the desktop.
// Disabled instances swallow all calls, so callers never need a nil check.
type WorkspaceNotifier struct {
	enabled bool
	logger  logger.Logger

	// notify is swappable for tests; defaults to beeep.Notify
	notify func(title, message, icon string) error
}

// New creates a workspace notifier
func New(enabled bool, log logger.Logger) *WorkspaceNotifier {
	return &WorkspaceNotifier{
		enabled: enabled,
		logger:  log,
		notify:  beeep.Notify,
	}
}

// NotifyWorkspaceSuccess reports a fully built workspace
func (n *WorkspaceNotifier) NotifyWorkspaceSuccess(packages int) {
	if !n.enabled {
		return
	}
	noun := "packages"
	if packages == 1 {
		noun = "package"
	}
	n.send("Workspace build succeeded", fmt.Sprintf("%d %s processed", packages, noun))
}

// NotifyWorkspaceFailure reports the packages that failed
func (n *WorkspaceNotifier) NotifyWorkspaceFailure(failed []string) {
	if !n.enabled {
		return
	}
	message := "workspace build did not complete"
	if len(failed) > 0 {
		message = "failed: " + strings.Join(failed, ", ")
	}
	n.send("Workspace build failed", message)
}

func (n *WorkspaceNotifier) send(title, message string) {
	if err := n.notify("masonry: "+title, message, ""); err != nil {
		// notification delivery is best effort
		n.logger.Debug("failed to send desktop notification",
			logger.WithField("error", err))
	}
}
