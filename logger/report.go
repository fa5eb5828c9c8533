package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsReader   int64
	errorsWriter   int64
	warnsReader    int64
	warnsWriter    int64
	reportsFetched int64
	curvesParsed   int64
	parquetWrites  int64
	s3Uploads      int64
	channels       sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "reader") {
		atomic.AddInt64(&warnsReader, 1)
	} else if strings.Contains(component, "writer") {
		atomic.AddInt64(&warnsWriter, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "reader") {
		atomic.AddInt64(&errorsReader, 1)
	} else if strings.Contains(component, "writer") {
		atomic.AddInt64(&errorsWriter, 1)
	}
}

// IncrementReportFetched records one successfully downloaded daily report of
// the given payload size.
func IncrementReportFetched(size int) {
	atomic.AddInt64(&reportsFetched, 1)
	recordChannel("report_fetch", size)
}

// IncrementCurvesParsed records curve points decoded out of a report.
func IncrementCurvesParsed(count int) {
	atomic.AddInt64(&curvesParsed, int64(count))
}

// IncrementParquetWrite records one parquet file written locally.
func IncrementParquetWrite(size int64) {
	atomic.AddInt64(&parquetWrites, 1)
	recordChannel("parquet_write", int(size))
}

// IncrementS3Upload records one archived object uploaded to S3.
func IncrementS3Upload(size int64) {
	atomic.AddInt64(&s3Uploads, 1)
	recordChannel("s3_upload", int(size))
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and crawl statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_reader":   atomic.LoadInt64(&errorsReader),
		"errors_writer":   atomic.LoadInt64(&errorsWriter),
		"warns_reader":    atomic.LoadInt64(&warnsReader),
		"warns_writer":    atomic.LoadInt64(&warnsWriter),
		"reports_fetched": atomic.LoadInt64(&reportsFetched),
		"curves_parsed":   atomic.LoadInt64(&curvesParsed),
		"parquet_writes":  atomic.LoadInt64(&parquetWrites),
		"s3_uploads":      atomic.LoadInt64(&s3Uploads),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       int64(memStats.Used) / 1024 / 1024,
		"disk_mb":         int64(diskStats.Used) / 1024 / 1024,
		"channels":        channelData,
		"net_bytes_sent":  int64(bytesSent),
		"net_bytes_recv":  int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-ErrorsReader"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_reader"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-ErrorsWriter"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_writer"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-WarnsReader"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_reader"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-WarnsWriter"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_writer"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-ReportsFetched"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["reports_fetched"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-CurvesParsed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["curves_parsed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-ParquetWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["parquet_writes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-S3Uploads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["s3_uploads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("CurveFlow-NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("CurveFlow-ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("CurveFlow-ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
