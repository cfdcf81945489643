package storage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

const settingsRowKey = "ui"

// SettingsTable stores per-user UI settings in an Azure table, one entity
// per user partition.
type SettingsTable struct {
	table *aztables.Client
}

func retryOptions(maxRetries int32, tryTimeout, maxDelay time.Duration) policy.RetryOptions {
	return policy.RetryOptions{
		MaxRetries:    maxRetries,
		TryTimeout:    tryTimeout,
		RetryDelay:    time.Second,
		MaxRetryDelay: maxDelay,
		StatusCodes:   []int{408, 429, 500, 502, 503, 504},
	}
}

// NewSettingsTable connects to table name using an Azure storage connection string.
func NewSettingsTable(connStr, name string) (*SettingsTable, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{Retry: retryOptions(3, 3*time.Minute, 15*time.Second)},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &SettingsTable{table: svc.NewClient(name)}, nil
}

type settingsEntity struct {
	PartitionKey    string `json:"PartitionKey"`
	RowKey          string `json:"RowKey"`
	SidebarExpanded bool   `json:"SidebarExpanded"`
	Theme           string `json:"Theme"`
}

func decodeSettingsEntity(data []byte) (domain.Settings, error) {
	var raw settingsEntity
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return domain.Settings{}, err
	}
	s := domain.Settings{SidebarExpanded: raw.SidebarExpanded, Theme: domain.Theme(raw.Theme)}
	if s.Theme == "" {
		s.Theme = domain.ThemeSystem
	}
	return s, nil
}

// FetchSettings returns userID's settings, or the defaults when none were saved.
func (t *SettingsTable) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	ent, err := t.table.GetEntity(ctx, userID, settingsRowKey, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return domain.DefaultSettings(), nil
		}
		return domain.Settings{}, err
	}
	return decodeSettingsEntity(ent.Value)
}

// SaveSettings replaces userID's settings.
func (t *SettingsTable) SaveSettings(ctx context.Context, userID string, s domain.Settings) error {
	payload, err := sonic.Marshal(settingsEntity{
		PartitionKey:    userID,
		RowKey:          settingsRowKey,
		SidebarExpanded: s.SidebarExpanded,
		Theme:           string(s.Theme),
	})
	if err != nil {
		return err
	}
	_, err = t.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// Create creates the table, ignoring an existing one.
func (t *SettingsTable) Create(ctx context.Context) error {
	_, err := t.table.CreateTable(ctx, nil)
	if err != nil && !hasErrorCode(err, string(aztables.TableAlreadyExists)) {
		return err
	}
	return nil
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

func hasErrorCode(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}
