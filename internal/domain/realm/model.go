package realm

import (
	"fmt"
	"sort"
	"strings"
)

// Realm names a regional instance of the Wargaming API.
type Realm string

const (
	RU   Realm = "RU"
	EU   Realm = "EU"
	NA   Realm = "NA"
	ASIA Realm = "ASIA"
)

var apiRoots = map[Realm]string{
	RU:   "https://api.worldoftanks.ru/wot/",
	EU:   "https://api.worldoftanks.eu/wot/",
	NA:   "https://api.worldoftanks.com/wot/",
	ASIA: "https://api.worldoftanks.asia/wot/",
}

func Parse(raw string) (Realm, error) {
	value := Realm(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := apiRoots[value]; !ok {
		return "", fmt.Errorf("unknown realm %q: choose one of %s", raw, strings.Join(Names(), ", "))
	}
	return value, nil
}

func (r Realm) APIRoot() string {
	return apiRoots[r]
}

func Names() []string {
	out := make([]string, 0, len(apiRoots))
	for r := range apiRoots {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}
