package dashboard

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Influx writes each update as one point to an InfluxDB 2 bucket.
type Influx struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
}

func NewInflux(url, token, org, bucket, measurement string) *Influx {
	client := influxdb2.NewClient(url, token)
	return &Influx{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(org, bucket),
		measurement: measurement,
	}
}

func (i *Influx) Push(ctx context.Context, u Update) error {
	p := influxdb2.NewPoint(
		i.measurement,
		map[string]string{
			"alarm_state": string(u.AlarmState),
		},
		map[string]interface{}{
			"temp":      u.TemperatureC,
			"voc":       u.VOC,
			"ai_status": u.Status,
		},
		u.Timestamp,
	)
	return i.writeAPI.WritePoint(ctx, p)
}

func (i *Influx) Close() {
	i.client.Close()
}
