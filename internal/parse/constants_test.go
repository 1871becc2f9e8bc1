package parse

import (
	"testing"
)

func TestParseConstants(t *testing.T) {
	text := `
TYPE_MONSTER        =0x1          --怪兽
TYPE_SPELL          =0x2          --魔法
TYPE_FUSION         =0x40         --融合
RACE_WARRIOR        =0x1          --战士
RACE_DRAGON         =0x2000       --龙
ATTRIBUTE_EARTH     =0x01         --地
ATTRIBUTE_LIGHT     =0x10         --光
TYPE_ALL            =0x7fffffff   --全部类型
TYPES_TOKEN         =0x4000       --衍生物集合
LOCATION_DECK       =0x01         --卡组
not a constant line
`

	maps := ParseConstants(text)

	if got := maps.Type[0x1]; got != "怪兽" {
		t.Errorf("Type[0x1] = %q, want 怪兽", got)
	}
	if got := maps.Type[0x40]; got != "融合" {
		t.Errorf("Type[0x40] = %q, want 融合", got)
	}
	if got := maps.Race[0x2000]; got != "龙" {
		t.Errorf("Race[0x2000] = %q, want 龙", got)
	}
	if got := maps.Attribute[0x10]; got != "光" {
		t.Errorf("Attribute[0x10] = %q, want 光", got)
	}

	// Aggregate and collection constants must be skipped.
	if _, ok := maps.Type[0x7fffffff]; ok {
		t.Error("TYPE_ALL should be skipped")
	}
	if _, ok := maps.Type[0x4000]; ok {
		t.Error("TYPES_TOKEN should be skipped")
	}

	// Three atomic TYPE entries survive (MONSTER, SPELL, FUSION).
	if len(maps.Type) != 3 || len(maps.Race) != 2 || len(maps.Attribute) != 2 {
		t.Errorf("unexpected map sizes: type=%d race=%d attr=%d",
			len(maps.Type), len(maps.Race), len(maps.Attribute))
	}
}

func TestParseConstantsEmpty(t *testing.T) {
	maps := ParseConstants("")
	if len(maps.Race) != 0 || len(maps.Attribute) != 0 || len(maps.Type) != 0 {
		t.Error("empty input should yield empty maps")
	}
	// Maps must still be usable for lookups.
	if _, ok := maps.Race[1]; ok {
		t.Error("lookup on empty map should miss")
	}
}

func TestLoadConstantsMissingFile(t *testing.T) {
	maps := LoadConstants("/nonexistent/constant.lua")
	if len(maps.Type) != 0 {
		t.Error("missing file should degrade to empty maps")
	}
}
