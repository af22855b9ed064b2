// Package all links every command package into the binary so their init
// functions register with the registry.
package all

import (
	_ "github.com/kevinfinalboss/VoidMod/commands/admin"
	_ "github.com/kevinfinalboss/VoidMod/commands/moderation"
	_ "github.com/kevinfinalboss/VoidMod/commands/util"
)
