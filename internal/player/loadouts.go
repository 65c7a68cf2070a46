package player

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "embed"
)

var (
	// ErrUnknownLoadout is returned for loadout ids missing from the catalog.
	ErrUnknownLoadout = errors.New("unknown loadout")
	// ErrLoadoutLocked is returned when a run requests a loadout that is not selectable.
	ErrLoadoutLocked = errors.New("loadout is not selectable")
)

// Loadout defines a selectable character and its starting kit.
type Loadout struct {
	ID                   string  `json:"id"`
	DisplayName          string  `json:"displayName"`
	Selectable           bool    `json:"selectable"`
	StartingWeapon       string  `json:"startingWeapon"`
	BaseMaxHP            float64 `json:"baseMaxHp"`
	BaseMoveSpeed        float64 `json:"baseMoveSpeed"`
	BaseDamageMultiplier float64 `json:"baseDamageMultiplier"`
}

// ShopTuning controls how persisted shop levels scale a loadout.
type ShopTuning struct {
	MaxLevel       int     `json:"maxLevel"`
	DamagePerLevel float64 `json:"damagePerLevel"`
	SpeedPerLevel  float64 `json:"speedPerLevel"`
	HealthPerLevel float64 `json:"healthPerLevel"`
}

type loadoutFile struct {
	Loadouts []Loadout  `json:"loadouts"`
	Shop     ShopTuning `json:"shop"`
}

//go:embed loadouts.json
var loadoutPayload []byte

var (
	loadoutOnce sync.Once
	loadoutData loadoutFile
	loadoutErr  error
)

func loadFile() loadoutFile {
	loadoutOnce.Do(func() {
		//1.- Parse the embedded catalogue once for every run.
		loadoutErr = json.Unmarshal(loadoutPayload, &loadoutData)
	})
	//2.- Surface configuration errors eagerly to avoid divergent tuning tables.
	if loadoutErr != nil {
		panic(loadoutErr)
	}
	return loadoutData
}

// Loadouts returns a copy of every configured character.
func Loadouts() []Loadout {
	data := loadFile()
	clones := make([]Loadout, len(data.Loadouts))
	copy(clones, data.Loadouts)
	return clones
}

// Shop returns the shop scaling table.
func Shop() ShopTuning {
	return loadFile().Shop
}

// LookupLoadout finds a loadout by id.
func LookupLoadout(id string) (Loadout, error) {
	for _, loadout := range Loadouts() {
		if loadout.ID == id {
			return loadout, nil
		}
	}
	return Loadout{}, fmt.Errorf("%w %q", ErrUnknownLoadout, id)
}

// DefaultLoadoutID returns the first selectable loadout identifier.
func DefaultLoadoutID() string {
	for _, loadout := range Loadouts() {
		if loadout.Selectable {
			return loadout.ID
		}
	}
	return ""
}
