package player

// ShopLevels are the between-run purchases persisted outside the engine.
type ShopLevels struct {
	Damage int `json:"damage"`
	Speed  int `json:"speed"`
	Health int `json:"health"`
}

// ShopLevels lets a literal value act as its own provider.
func (l ShopLevels) ShopLevels() ShopLevels { return l }

// StartingStatProvider exposes persisted shop levels read once at run start.
type StartingStatProvider interface {
	ShopLevels() ShopLevels
}

// Baseline is the player's starting point before per-run upgrades.
type Baseline struct {
	LoadoutID        string     `json:"loadoutId"`
	StartingWeapon   string     `json:"startingWeapon"`
	MaxHP            float64    `json:"maxHp"`
	MoveSpeed        float64    `json:"moveSpeed"`
	DamageMultiplier float64    `json:"damageMultiplier"`
	Shop             ShopLevels `json:"shop"`
}

// NewBaseline scales the loadout by the provider's shop levels. A nil provider
// means no purchases.
func NewBaseline(loadoutID string, provider StartingStatProvider) (Baseline, error) {
	loadout, err := LookupLoadout(loadoutID)
	if err != nil {
		return Baseline{}, err
	}
	var levels ShopLevels
	if provider != nil {
		levels = provider.ShopLevels()
	}
	tuning := Shop()
	levels = clampLevels(levels, tuning.MaxLevel)

	damage := loadout.BaseDamageMultiplier
	if damage <= 0 {
		damage = 1
	}
	return Baseline{
		LoadoutID:        loadout.ID,
		StartingWeapon:   loadout.StartingWeapon,
		MaxHP:            loadout.BaseMaxHP * (1 + tuning.HealthPerLevel*float64(levels.Health)),
		MoveSpeed:        loadout.BaseMoveSpeed * (1 + tuning.SpeedPerLevel*float64(levels.Speed)),
		DamageMultiplier: damage * (1 + tuning.DamagePerLevel*float64(levels.Damage)),
		Shop:             levels,
	}, nil
}

func clampLevels(levels ShopLevels, max int) ShopLevels {
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if max > 0 && v > max {
			return max
		}
		return v
	}
	return ShopLevels{Damage: clamp(levels.Damage), Speed: clamp(levels.Speed), Health: clamp(levels.Health)}
}
