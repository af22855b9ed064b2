package database

import (
	"fmt"

	"github.com/kevinfinalboss/VoidMod/internal/models"
)

func validateSetting(setting string, value interface{}) error {
	switch setting {
	case models.SettingModerationEnabled:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("setting %s expects a bool, got %T", setting, value)
		}
	case models.SettingAuditLogChannel, models.SettingModerationLogChannel, models.SettingModerationMuteRole:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("setting %s expects a string, got %T", setting, value)
		}
	default:
		return fmt.Errorf("unknown guild setting %q", setting)
	}
	return nil
}
