package report

// htmlTemplate is the single-file HTML report. Chart.js is pulled from a CDN
// so the report can be opened directly from disk.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Name}} - Load Test Report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg: #f6f8fb;
            --card: #ffffff;
            --text: #1f2937;
            --text-dim: #6b7280;
            --border: #e5e7eb;
            --blue: #2563eb;
            --green: #16a34a;
            --amber: #d97706;
            --red: #dc2626;
            --violet: #7c3aed;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.08);
        }

        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.6;
        }

        .container { max-width: 1320px; margin: 0 auto; padding: 2rem; }

        .header {
            background: var(--card);
            border-radius: 10px;
            padding: 1.75rem 2rem;
            margin-bottom: 1.5rem;
            box-shadow: var(--shadow);
            display: flex;
            justify-content: space-between;
            align-items: center;
            flex-wrap: wrap;
            gap: 1rem;
        }

        .header h1 { font-size: 1.6rem; font-weight: 700; }

        .header .meta {
            display: flex;
            gap: 1.5rem;
            margin-top: 0.5rem;
            font-size: 0.85rem;
            color: var(--text-dim);
        }

        .verdict {
            padding: 0.65rem 1.4rem;
            border-radius: 8px;
            font-weight: 600;
        }
        .verdict.pass { background: rgba(22, 163, 74, 0.1); color: var(--green); }
        .verdict.fail { background: rgba(220, 38, 38, 0.1); color: var(--red); }

        .cards {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(170px, 1fr));
            gap: 1rem;
            margin-bottom: 1.5rem;
        }

        .card {
            background: var(--card);
            border-radius: 10px;
            padding: 1.25rem;
            box-shadow: var(--shadow);
        }

        .card .label {
            font-size: 0.72rem;
            text-transform: uppercase;
            letter-spacing: 0.05em;
            color: var(--text-dim);
            margin-bottom: 0.35rem;
        }

        .card .value { font-size: 1.5rem; font-weight: 700; }
        .card .unit { font-size: 0.85rem; color: var(--text-dim); margin-left: 0.2rem; }

        .section {
            background: var(--card);
            border-radius: 10px;
            padding: 1.5rem 2rem;
            margin-bottom: 1.5rem;
            box-shadow: var(--shadow);
        }

        .section h2 {
            font-size: 1.05rem;
            font-weight: 600;
            margin-bottom: 1.25rem;
            padding-bottom: 0.6rem;
            border-bottom: 1px solid var(--border);
        }

        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(110px, 1fr));
            gap: 1rem;
        }

        .latency-grid .pct { font-size: 0.75rem; color: var(--text-dim); }
        .latency-grid .val { font-size: 1.15rem; font-weight: 600; }

        .chart-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(420px, 1fr));
            gap: 1.5rem;
        }

        .chart-wrapper { position: relative; height: 280px; }
        .chart-title { font-size: 0.85rem; font-weight: 600; margin-bottom: 0.5rem; color: var(--text-dim); }

        table {
            width: 100%;
            border-collapse: collapse;
            font-size: 0.875rem;
        }

        th, td {
            padding: 0.65rem 0.9rem;
            text-align: left;
            border-bottom: 1px solid var(--border);
        }

        th {
            font-size: 0.72rem;
            text-transform: uppercase;
            letter-spacing: 0.05em;
            color: var(--text-dim);
        }

        tr:last-child td { border-bottom: none; }
        tr:hover td { background: var(--bg); }

        .threshold {
            display: flex;
            align-items: center;
            gap: 0.9rem;
            padding: 0.75rem 0;
            border-bottom: 1px solid var(--border);
        }
        .threshold:last-child { border-bottom: none; }
        .threshold .icon.pass { color: var(--green); }
        .threshold .icon.fail { color: var(--red); }
        .threshold .metric { font-weight: 600; }
        .threshold .detail { font-size: 0.8rem; color: var(--text-dim); }
        .threshold .actual { margin-left: auto; font-size: 0.85rem; }
        .threshold .msg { color: var(--red); font-size: 0.78rem; }

        .footer {
            text-align: center;
            padding: 1.5rem;
            color: var(--text-dim);
            font-size: 0.75rem;
        }

        @media print {
            body { background: white; }
            .section, .header, .card { box-shadow: none; border: 1px solid var(--border); }
        }
    </style>
</head>
<body>
    <div class="container">
        <header class="header">
            <div>
                <h1>{{.Name}}</h1>
                <div class="meta">
                    <span>Task set: {{.TaskSet}}</span>
                    <span>Executor: {{.Executor}}</span>
                    <span>{{.StartTime.Format "2006-01-02 15:04:05"}}</span>
                    <span>{{formatDuration .Duration}}</span>
                </div>
            </div>
            <div class="verdict {{if .Passed}}pass{{else}}fail{{end}}">
                {{if .Passed}}&#10003; PASSED{{else}}&#10007; FAILED{{end}}
            </div>
        </header>

        <div class="cards">
            <div class="card">
                <div class="label">Total Operations</div>
                <div class="value">{{formatNumber .Metrics.TotalOperations}}</div>
            </div>
            <div class="card">
                <div class="label">Throughput</div>
                <div class="value">{{printf "%.1f" .Metrics.RPS}}<span class="unit">op/s</span></div>
            </div>
            <div class="card">
                <div class="label">Error Rate</div>
                <div class="value">{{printf "%.2f" (mul .Metrics.ErrorRate 100)}}<span class="unit">%</span></div>
            </div>
            <div class="card">
                <div class="label">P95 Latency</div>
                <div class="value">{{formatLatency .Metrics.Latency.P95}}</div>
            </div>
            <div class="card">
                <div class="label">Success Rate</div>
                <div class="value">{{printf "%.2f" (successRate .Metrics)}}<span class="unit">%</span></div>
            </div>
            <div class="card">
                <div class="label">Data Transferred</div>
                <div class="value">{{formatBytes .Metrics.TotalBytes}}</div>
            </div>
        </div>

        <section class="section">
            <h2>Latency</h2>
            <div class="latency-grid">
                <div><div class="pct">Min</div><div class="val">{{formatLatency .Metrics.Latency.Min}}</div></div>
                <div><div class="pct">P50</div><div class="val">{{formatLatency .Metrics.Latency.P50}}</div></div>
                <div><div class="pct">P90</div><div class="val">{{formatLatency .Metrics.Latency.P90}}</div></div>
                <div><div class="pct">P95</div><div class="val">{{formatLatency .Metrics.Latency.P95}}</div></div>
                <div><div class="pct">P99</div><div class="val">{{formatLatency .Metrics.Latency.P99}}</div></div>
                <div><div class="pct">Max</div><div class="val">{{formatLatency .Metrics.Latency.Max}}</div></div>
                <div><div class="pct">Mean</div><div class="val">{{formatLatency .Metrics.Latency.Mean}}</div></div>
                <div><div class="pct">Std Dev</div><div class="val">{{formatLatency .Metrics.Latency.StdDev}}</div></div>
            </div>
        </section>

        {{if .TimeSeries}}
        <section class="section">
            <h2>Time Series</h2>
            <div class="chart-grid">
                <div>
                    <div class="chart-title">Operations Per Second</div>
                    <div class="chart-wrapper"><canvas id="rpsChart"></canvas></div>
                </div>
                <div>
                    <div class="chart-title">Latency Percentiles</div>
                    <div class="chart-wrapper"><canvas id="latencyChart"></canvas></div>
                </div>
                <div>
                    <div class="chart-title">Active Users</div>
                    <div class="chart-wrapper"><canvas id="usersChart"></canvas></div>
                </div>
                <div>
                    <div class="chart-title">Error Rate</div>
                    <div class="chart-wrapper"><canvas id="errorChart"></canvas></div>
                </div>
            </div>
        </section>
        {{end}}

        {{if .OperationStats}}
        <section class="section">
            <h2>Operation Statistics</h2>
            <table>
                <thead>
                    <tr>
                        <th>Operation</th>
                        <th>Count</th>
                        <th>Min</th>
                        <th>Mean</th>
                        <th>P50</th>
                        <th>P95</th>
                        <th>P99</th>
                        <th>Max</th>
                    </tr>
                </thead>
                <tbody>
                    {{range $name, $stats := .OperationStats}}
                    <tr>
                        <td>{{$name}}</td>
                        <td>{{formatNumber $stats.Count}}</td>
                        <td>{{formatLatency $stats.Min}}</td>
                        <td>{{formatLatency $stats.Mean}}</td>
                        <td>{{formatLatency $stats.P50}}</td>
                        <td>{{formatLatency $stats.P95}}</td>
                        <td>{{formatLatency $stats.P99}}</td>
                        <td>{{formatLatency $stats.Max}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </section>
        {{end}}

        {{if .Failures}}
        <section class="section">
            <h2>Failures</h2>
            <table>
                <thead>
                    <tr>
                        <th>Operation</th>
                        <th>Reason</th>
                        <th>Count</th>
                        <th>Last Seen</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .Failures}}
                    <tr>
                        <td>{{.Operation}}</td>
                        <td>{{.Reason}}</td>
                        <td>{{formatNumber .Count}}</td>
                        <td>{{.LastSeen.Format "15:04:05"}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </section>
        {{end}}

        {{if .Thresholds}}
        <section class="section">
            <h2>Thresholds</h2>
            {{range .Thresholds}}
            <div class="threshold">
                <span class="icon {{if .Passed}}pass{{else}}fail{{end}}">{{if .Passed}}&#10003;{{else}}&#10007;{{end}}</span>
                <div>
                    <div class="metric">{{.Metric}}</div>
                    <div class="detail">limit {{.Limit}}</div>
                </div>
                <div class="actual">
                    {{.Value}}
                    {{if .Message}}<br><span class="msg">{{.Message}}</span>{{end}}
                </div>
            </div>
            {{end}}
        </section>
        {{end}}

        <footer class="footer">
            <p>stampede run {{.RunID}} &middot; generated {{.EndTime.Format "2006-01-02 15:04:05 MST"}}</p>
        </footer>
    </div>

    <script>
        const timeSeriesData = {{.TimeSeriesJSON}};

        const labels = timeSeriesData.map((d, i) => i + 's');
        const rpsData = timeSeriesData.map(d => d.intervalRPS);
        const p50Data = timeSeriesData.map(d => d.latencyP50 / 1000000); // ns to ms
        const p95Data = timeSeriesData.map(d => d.latencyP95 / 1000000);
        const p99Data = timeSeriesData.map(d => d.latencyP99 / 1000000);
        const usersData = timeSeriesData.map(d => d.activeUsers);
        const errorData = timeSeriesData.map(d => d.intervalErrorRate * 100);

        const colors = {
            text: '#1f2937',
            grid: '#e5e7eb',
            blue: '#2563eb',
            green: '#16a34a',
            amber: '#d97706',
            red: '#dc2626',
            violet: '#7c3aed',
        };

        const commonOptions = {
            responsive: true,
            maintainAspectRatio: false,
            interaction: { mode: 'index', intersect: false },
            plugins: {
                legend: { labels: { color: colors.text, usePointStyle: true, pointStyle: 'circle' } },
            },
            scales: {
                x: { ticks: { color: colors.text }, grid: { color: colors.grid } },
                y: { ticks: { color: colors.text }, grid: { color: colors.grid }, beginAtZero: true },
            },
        };

        function line(label, data, color, fill) {
            return {
                label: label,
                data: data,
                borderColor: color,
                backgroundColor: fill ? color + '20' : 'transparent',
                fill: fill,
                tension: 0.3,
                pointRadius: 0,
                borderWidth: 2,
            };
        }

        function createCharts() {
            new Chart(document.getElementById('rpsChart'), {
                type: 'line',
                data: { labels: labels, datasets: [line('op/s', rpsData, colors.blue, true)] },
                options: commonOptions,
            });

            new Chart(document.getElementById('latencyChart'), {
                type: 'line',
                data: {
                    labels: labels,
                    datasets: [
                        line('P50', p50Data, colors.green, false),
                        line('P95', p95Data, colors.amber, false),
                        line('P99', p99Data, colors.red, false),
                    ],
                },
                options: {
                    ...commonOptions,
                    scales: {
                        ...commonOptions.scales,
                        y: { ...commonOptions.scales.y, title: { display: true, text: 'ms', color: colors.text } },
                    },
                },
            });

            const users = line('Active users', usersData, colors.violet, true);
            users.stepped = true;
            new Chart(document.getElementById('usersChart'), {
                type: 'line',
                data: { labels: labels, datasets: [users] },
                options: commonOptions,
            });

            new Chart(document.getElementById('errorChart'), {
                type: 'line',
                data: { labels: labels, datasets: [line('Error %', errorData, colors.red, true)] },
                options: {
                    ...commonOptions,
                    scales: {
                        ...commonOptions.scales,
                        y: {
                            ...commonOptions.scales.y,
                            max: Math.max(10, Math.ceil(Math.max(0, ...errorData) * 1.1)),
                            title: { display: true, text: '%', color: colors.text },
                        },
                    },
                },
            });
        }

        document.addEventListener('DOMContentLoaded', function() {
            if (timeSeriesData && timeSeriesData.length > 0) {
                createCharts();
            }
        });
    </script>
</body>
</html>`
