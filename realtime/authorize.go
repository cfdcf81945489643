package realtime

import (
	"context"
	"fmt"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

type memberLookup interface {
	MemberRole(ctx context.Context, projectID, userID string) (domain.Role, error)
}

type taskLookup interface {
	GetTask(ctx context.Context, taskID string) (domain.Task, error)
}

// MembershipAuthorizer allows project topics to project members, comment
// topics to members of the task's project and notification topics to their
// owner only.
type MembershipAuthorizer struct {
	Members memberLookup
	Tasks   taskLookup
}

func (a MembershipAuthorizer) AuthorizeTopic(ctx context.Context, userID, topic string) error {
	kind, id, ok := domain.SplitTopic(topic)
	if !ok {
		return fmt.Errorf("topic %q: %w", topic, domain.ErrForbidden)
	}
	switch kind {
	case domain.TopicNotifications:
		if id != userID {
			return fmt.Errorf("topic %q: %w", topic, domain.ErrForbidden)
		}
		return nil
	case domain.TopicComments:
		task, err := a.Tasks.GetTask(ctx, id)
		if err != nil {
			return err
		}
		id = task.ProjectID
	}
	if _, err := a.Members.MemberRole(ctx, id, userID); err != nil {
		return err
	}
	return nil
}
