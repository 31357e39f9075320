package observation

const (
	StatisticsTable = "statistics"
	AccountIDColumn = "account_id"
	UpdatedAtColumn = "updated_at"
	NicknameColumn  = "nickname"
)

// StatisticsColumns mirrors the statistics table migration column order.
var StatisticsColumns = []Column{
	{Name: "account_id", Type: ColumnInteger},
	{Name: "battles_on_stunning_vehicles", Type: ColumnInteger},
	{Name: "spotted", Type: ColumnInteger},
	{Name: "avg_damage_blocked", Type: ColumnFloat},
	{Name: "direct_hits_received", Type: ColumnInteger},
	{Name: "explosion_hits", Type: ColumnInteger},
	{Name: "piercings", Type: ColumnInteger},
	{Name: "xp", Type: ColumnInteger},
	{Name: "avg_damage_assisted", Type: ColumnFloat},
	{Name: "dropped_capture_points", Type: ColumnInteger},
	{Name: "piercings_received", Type: ColumnInteger},
	{Name: "hits_percents", Type: ColumnInteger},
	{Name: "draws", Type: ColumnInteger},
	{Name: "battles", Type: ColumnInteger},
	{Name: "damage_received", Type: ColumnInteger},
	{Name: "survived_battles", Type: ColumnInteger},
	{Name: "avg_damage_assisted_track", Type: ColumnFloat},
	{Name: "frags", Type: ColumnInteger},
	{Name: "stun_number", Type: ColumnInteger},
	{Name: "avg_damage_assisted_radio", Type: ColumnFloat},
	{Name: "capture_points", Type: ColumnInteger},
	{Name: "stun_assisted_damage", Type: ColumnInteger},
	{Name: "hits", Type: ColumnInteger},
	{Name: "battle_avg_xp", Type: ColumnInteger},
	{Name: "wins", Type: ColumnInteger},
	{Name: "losses", Type: ColumnInteger},
	{Name: "damage_dealt", Type: ColumnInteger},
	{Name: "no_damage_direct_hits_received", Type: ColumnInteger},
	{Name: "shots", Type: ColumnInteger},
	{Name: "explosion_hits_received", Type: ColumnInteger},
	{Name: "tanking_factor", Type: ColumnFloat},
	{Name: "trees_cut", Type: ColumnInteger},
	{Name: "last_battle_time", Type: ColumnTimestamp},
	{Name: "updated_at", Type: ColumnTimestamp},
	{Name: "global_rating", Type: ColumnInteger},
	{Name: "clan_id", Type: ColumnInteger},
	{Name: "nickname", Type: ColumnText},
	{Name: "logout_at", Type: ColumnTimestamp},
}

// StatisticsSpec returns the field spec of the statistics table.
func StatisticsSpec() FieldSpec {
	spec, err := NewFieldSpec(StatisticsTable, AccountIDColumn, UpdatedAtColumn, StatisticsColumns)
	if err != nil {
		panic(err)
	}
	return spec
}
