package utils

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultAPIURL is the ip-api.com endpoint queried when none is configured.
const DefaultAPIURL = "http://ip-api.com"

// Locator returns the geolocation CSV row for one IP address. The row starts
// with a status field and ends with the queried address.
type Locator interface {
	Locate(ctx context.Context, ip string) (string, error)
}

// IPAPILocator queries the ip-api.com CSV endpoint.
type IPAPILocator struct {
	BaseURL string
	Client  *http.Client // nil means SharedHTTPClient
}

// NewIPAPILocator returns a locator for baseURL, or DefaultAPIURL when empty.
func NewIPAPILocator(baseURL string) *IPAPILocator {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &IPAPILocator{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// Locate fetches <BaseURL>/csv/<ip> and returns the body with any trailing newline removed.
func (l *IPAPILocator) Locate(ctx context.Context, ip string) (string, error) {
	res, err := FetchURL(ctx, l.Client, l.BaseURL+"/csv/"+ip)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("geolocation lookup for %s: %s", ip, res.Status)
	}
	return strings.TrimRight(string(res.Body), "\r\n"), nil
}

// MaxMindLocator answers lookups from local GeoLite2 City and ASN databases,
// rendering rows in the same column layout as ip-api.com.
type MaxMindLocator struct {
	cityDB *geoip2.Reader
	asnDB  *geoip2.Reader
	log    logrus.FieldLogger
}

// OpenMaxMind opens whichever of the two databases has a path. At least one is required.
func OpenMaxMind(cityDBPath, asnDBPath string, log logrus.FieldLogger) (*MaxMindLocator, error) {
	if cityDBPath == "" && asnDBPath == "" {
		return nil, errors.New("no MMDB path provided")
	}
	l := &MaxMindLocator{log: log}

	if cityDBPath != "" {
		db, err := geoip2.Open(cityDBPath)
		if err != nil {
			return nil, errors.Wrapf(err, "open GeoLite2-City database %s", cityDBPath)
		}
		l.cityDB = db
		log.Debugf("Loaded GeoLite2-City database from %s", cityDBPath)
	} else {
		log.Warn("City MMDB path not provided. Location columns will be empty.")
	}

	if asnDBPath != "" {
		db, err := geoip2.Open(asnDBPath)
		if err != nil {
			l.Close()
			return nil, errors.Wrapf(err, "open GeoLite2-ASN database %s", asnDBPath)
		}
		l.asnDB = db
		log.Debugf("Loaded GeoLite2-ASN database from %s", asnDBPath)
	} else {
		log.Warn("ASN MMDB path not provided. ISP/Org/AS columns will be empty.")
	}
	return l, nil
}

// Close releases both databases.
func (l *MaxMindLocator) Close() {
	if l.cityDB != nil {
		if err := l.cityDB.Close(); err != nil {
			l.log.Errorf("Error closing GeoLite2-City database: %v", err)
		}
	}
	if l.asnDB != nil {
		if err := l.asnDB.Close(); err != nil {
			l.log.Errorf("Error closing GeoLite2-ASN database: %v", err)
		}
	}
}

// Locate builds a row from the local databases.
func (l *MaxMindLocator) Locate(_ context.Context, ip string) (string, error) {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return formatGeoRow(geoRow{Status: "fail", Message: "invalid query", Query: ip})
	}

	var city *geoip2.City
	var asn *geoip2.ASN
	if l.cityDB != nil {
		rec, err := l.cityDB.City(parsedIP)
		if err != nil {
			return "", errors.Wrapf(err, "city lookup %s", ip)
		}
		city = rec
	}
	if l.asnDB != nil {
		rec, err := l.asnDB.ASN(parsedIP)
		if err != nil {
			return "", errors.Wrapf(err, "asn lookup %s", ip)
		}
		asn = rec
	}
	return formatGeoRow(geoRowFromMaxMind(ip, city, asn))
}

// geoRow holds the ip-api.com CSV columns.
type geoRow struct {
	Status      string
	Message     string // only for failed rows
	Country     string
	CountryCode string
	Region      string
	RegionName  string
	City        string
	Zip         string
	Lat         float64
	Lon         float64
	Timezone    string
	ISP         string
	Org         string
	AS          string
	Query       string
}

func geoRowFromMaxMind(ip string, city *geoip2.City, asn *geoip2.ASN) geoRow {
	row := geoRow{Status: "success", Query: ip}
	found := false

	if city != nil && city.Country.IsoCode != "" {
		found = true
		row.Country = city.Country.Names["en"]
		row.CountryCode = city.Country.IsoCode
		if len(city.Subdivisions) > 0 {
			row.Region = city.Subdivisions[0].IsoCode
			row.RegionName = city.Subdivisions[0].Names["en"]
		}
		row.City = city.City.Names["en"]
		row.Zip = city.Postal.Code
		row.Lat = city.Location.Latitude
		row.Lon = city.Location.Longitude
		row.Timezone = city.Location.TimeZone
	}
	if asn != nil && asn.AutonomousSystemNumber != 0 {
		found = true
		row.ISP = asn.AutonomousSystemOrganization
		row.Org = asn.AutonomousSystemOrganization
		row.AS = fmt.Sprintf("AS%d %s", asn.AutonomousSystemNumber, asn.AutonomousSystemOrganization)
	}

	if !found {
		return geoRow{Status: "fail", Message: "reserved range", Query: ip}
	}
	return row
}

func formatGeoRow(row geoRow) (string, error) {
	var fields []string
	if row.Status == "fail" {
		fields = []string{row.Status, row.Message, row.Query}
	} else {
		fields = []string{
			row.Status,
			row.Country,
			row.CountryCode,
			row.Region,
			row.RegionName,
			row.City,
			row.Zip,
			strconv.FormatFloat(row.Lat, 'f', -1, 64),
			strconv.FormatFloat(row.Lon, 'f', -1, 64),
			row.Timezone,
			row.ISP,
			row.Org,
			row.AS,
			row.Query,
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return "", errors.Wrap(err, "csv write")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrap(err, "csv flush")
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
