package logger

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var cwClient *cloudwatch.Client
var cwNamespace = "CurveFlow"
var cwDashboard = "CurveFlow"

// InitCloudWatch initialises the CloudWatch client using the provided region and
// namespace. If region is empty it falls back to the AWS_REGION environment
// variable. When the client cannot be created the function logs a warning and
// metrics publishing remains disabled.
func InitCloudWatch(region, namespace, dashboard string) {
	log := GetLogger().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	ctx := context.Background()
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	cwClient = cloudwatch.NewFromConfig(cfg)

	if namespace != "" {
		cwNamespace = namespace
	}

	if dashboard != "" {
		cwDashboard = dashboard
	}

	log.WithFields(Fields{"region": region, "namespace": cwNamespace}).Info("initialized CloudWatch client")

	CreateDefaultDashboard(ctx)
}

// publishMetrics sends the provided metric data to CloudWatch when the client
// has been initialised.
func publishMetrics(ctx context.Context, data []cwtypes.MetricDatum) {
	log := GetLogger().WithComponent("cloudwatch")
	if cwClient == nil {
		log.Debug("CloudWatch client not initialized; skipping metric publish")
		return
	}

	if len(data) == 0 {
		log.Debug("no metric data to publish")
		return
	}

	if _, err := cwClient.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(cwNamespace),
		MetricData: data,
	}); err != nil {
		log.WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}

	names := make([]string, 0, len(data))
	for _, datum := range data {
		if datum.MetricName != nil {
			names = append(names, *datum.MetricName)
		}
	}

	log.WithField("metrics", strings.Join(names, ",")).Debug("published metrics to CloudWatch")
}

// dashboardWidget mirrors the subset of the CloudWatch dashboard body schema
// the default dashboard needs.
type dashboardWidget struct {
	Type       string `json:"type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Y          int    `json:"y"`
	Properties struct {
		Metrics [][]string `json:"metrics"`
		Period  int        `json:"period"`
		Stat    string     `json:"stat"`
		Title   string     `json:"title"`
	} `json:"properties"`
}

func dashboardMetricWidget(y int, title, stat string, metricNames []string) dashboardWidget {
	w := dashboardWidget{Type: "metric", Width: 24, Height: 6, Y: y}
	w.Properties.Period = 60
	w.Properties.Stat = stat
	w.Properties.Title = title
	for _, name := range metricNames {
		w.Properties.Metrics = append(w.Properties.Metrics, []string{cwNamespace, name})
	}
	return w
}

// CreateDefaultDashboard ensures a dashboard with one crawl-throughput widget
// and one host widget exists when the CloudWatch client has been configured.
// Failures are logged but do not stop execution.
func CreateDefaultDashboard(ctx context.Context) {
	if cwClient == nil {
		return
	}

	widgets := []dashboardWidget{
		dashboardMetricWidget(0, "CurveFlow Crawl", "Maximum", []string{
			"CurveFlow-ReportsFetched",
			"CurveFlow-CurvesParsed",
			"CurveFlow-ParquetWrites",
			"CurveFlow-S3Uploads",
			"CurveFlow-ErrorsReader",
			"CurveFlow-ErrorsWriter",
		}),
		dashboardMetricWidget(6, "CurveFlow Host", "Average", []string{
			"CurveFlow-CPUPercent",
			"CurveFlow-MemoryMB",
			"CurveFlow-DiskMB",
		}),
	}

	body, err := json.Marshal(map[string]any{"widgets": widgets})
	if err != nil {
		GetLogger().WithComponent("cloudwatch").WithError(err).Warn("failed to build CloudWatch dashboard body")
		return
	}

	if _, err := cwClient.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(cwDashboard),
		DashboardBody: aws.String(string(body)),
	}); err != nil {
		GetLogger().WithComponent("cloudwatch").WithError(err).Warn("failed to create CloudWatch dashboard")
	}
}
