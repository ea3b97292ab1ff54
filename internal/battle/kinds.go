package battle

import (
	"context"
	"strings"

	"wolfie/internal/errs"
	"wolfie/internal/prefs"
	"wolfie/internal/state"
	logx "wolfie/pkg/logx"
)

const (
	DawnRegion   = "dawn_battle"
	WonderRegion = "wonder_battle"

	DawnTitle   = "Battle of Dawn"
	WonderTitle = "Wonder Contest"
)

// Class is a Battle of Dawn class and the aliases that select it.
type Class struct {
	Name    string
	Aliases []string
}

// Classes in match order; the first class listing an alias wins, so "m"
// is Monk.
var Classes = []Class{
	{Name: "Sage", Aliases: []string{"cs", "court", "sage", "courtsage"}},
	{Name: "ShadowWalker", Aliases: []string{"sw", "shadow", "walker", "shadowwalker"}},
	{Name: "Monk", Aliases: []string{"m", "monk"}},
	{Name: "Centurion", Aliases: []string{"c", "ct", "cent", "centurion"}},
	{Name: "Ranger", Aliases: []string{"r", "rg", "range", "ranger"}},
	{Name: "Guardian", Aliases: []string{"g", "guard", "guardian"}},
	{Name: "Zealot", Aliases: []string{"z", "zeal", "zealot"}},
	{Name: "Magistrate", Aliases: []string{"m", "mag", "magistrate"}},
}

func ClassNames() []string {
	out := make([]string, len(Classes))
	for i, c := range Classes {
		out[i] = c.Name
	}
	return out
}

// ResolveClass maps a class name or alias, case-insensitively.
func ResolveClass(input string) (string, error) {
	in := strings.ToLower(strings.TrimSpace(input))
	for _, c := range Classes {
		for _, a := range c.Aliases {
			if a == in {
				return c.Name, nil
			}
		}
	}
	return "", errs.Validation(errs.CodeInvalidClass, "unknown class %q, specify one of %s", input, strings.Join(ClassNames(), ", "))
}

// Dawn is the Battle of Dawn registry; records carry a role and primary flag.
type Dawn struct {
	*Registry
}

func NewDawn(st *state.Coordinator, lookup prefs.Lookup, log logx.Logger, opts ...Option) *Dawn {
	return &Dawn{Registry: New(DawnTitle, DawnRegion, st, lookup, log, opts...)}
}

// DawnPrimary reads the dawn options token: anything containing "p"
// ("-p", "p") marks the sign-up primary.
func DawnPrimary(options string) bool {
	return strings.Contains(strings.ToLower(options), "p")
}

func (d *Dawn) Add(ctx context.Context, participantID, day, slot, class string, primary bool) (Registration, error) {
	role, err := ResolveClass(class)
	if err != nil {
		return Registration{}, err
	}
	return d.Register(ctx, participantID, day, slot, map[string]any{"role": role, "primary": primary})
}

// Wonder is the Wonder Contest registry; records carry a primary flag.
type Wonder struct {
	*Registry
}

func NewWonder(st *state.Coordinator, lookup prefs.Lookup, log logx.Logger, opts ...Option) *Wonder {
	return &Wonder{Registry: New(WonderTitle, WonderRegion, st, lookup, log, opts...)}
}

// WonderPrimary parses the wonder flag: "" and "-s" are secondary, "-p"
// primary, anything else is rejected.
func WonderPrimary(flag string) (bool, error) {
	switch strings.TrimSpace(flag) {
	case "", "-s":
		return false, nil
	case "-p":
		return true, nil
	default:
		return false, errs.Validation(errs.CodeInvalidArgument, "invalid option %q, use -p for primary or -s for secondary", flag)
	}
}

func (w *Wonder) Add(ctx context.Context, participantID, day, slot string, primary bool) (Registration, error) {
	return w.Register(ctx, participantID, day, slot, map[string]any{"primary": primary})
}
