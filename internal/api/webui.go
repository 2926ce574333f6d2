package api

const webUI = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Auto-save Gateway</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#f5f5f5;color:#333;line-height:1.6}

/* Header */
.hdr{background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);color:#fff;padding:14px 20px;display:flex;align-items:center;justify-content:space-between;position:sticky;top:0;z-index:100}
.hdr h1{font-size:18px;font-weight:600}
.hdr-dot{width:10px;height:10px;border-radius:50%;display:inline-block;margin-left:8px}
.hdr-right{display:flex;align-items:center;font-size:13px;gap:6px}
.dot-green{background:#22c55e}.dot-red{background:#ef4444}.dot-yellow{background:#f59e0b}

/* Tab bar */
.tabs{display:flex;border-bottom:2px solid #e5e7eb;background:#fff;padding:0 16px;position:sticky;top:48px;z-index:99}
.tab{padding:12px 20px;cursor:pointer;font-size:14px;font-weight:500;color:#666;border-bottom:2px solid transparent;margin-bottom:-2px;transition:all .2s}
.tab:hover{color:#333}
.tab.active{color:#667eea;border-bottom-color:#667eea}

/* Content */
.content{max-width:900px;margin:0 auto;padding:20px}
.page{display:none;animation:fadeIn .3s ease}
.page.active{display:block}

/* Cards */
.card{background:#fff;border-radius:8px;padding:20px;margin-bottom:16px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.card h2{font-size:16px;margin-bottom:12px;padding-bottom:8px;border-bottom:1px solid #eee;display:flex;justify-content:space-between;align-items:center}

/* Buttons */
.btn{display:inline-flex;align-items:center;gap:6px;padding:8px 16px;border-radius:6px;border:none;cursor:pointer;font-size:14px;font-weight:500;transition:all .2s}
.btn-primary{background:#667eea;color:#fff}.btn-primary:hover{background:#5a67d8}
.btn-sm{padding:5px 10px;font-size:12px}

/* Forms */
.form-group{margin-bottom:14px}
.form-group label{display:block;font-size:13px;font-weight:500;margin-bottom:4px;color:#555}
.form-group input,.form-group textarea{width:100%;padding:8px 12px;border:1px solid #ddd;border-radius:6px;font-size:14px;font-family:inherit}
.form-group input:focus,.form-group textarea:focus{outline:none;border-color:#667eea;box-shadow:0 0 0 3px rgba(102,126,234,.15)}
.form-help{font-size:12px;color:#888;margin-top:3px}

/* Badges */
.badge{display:inline-block;padding:2px 10px;border-radius:20px;font-size:12px;font-weight:500}
.badge-green{background:#dcfce7;color:#166534}
.badge-red{background:#fee2e2;color:#991b1b}
.badge-yellow{background:#fef9c3;color:#854d0e}
.badge-blue{background:#dbeafe;color:#1e40af}
.badge-gray{background:#f3f4f6;color:#374151}

/* Stats */
.stat-grid{display:grid;grid-template-columns:repeat(3,1fr);gap:12px}
.stat{background:#f9fafb;border-radius:6px;padding:14px;text-align:center}
.stat strong{display:block;font-size:24px;color:#667eea}
.stat span{font-size:12px;color:#666}
.status-row{display:flex;justify-content:space-between;padding:8px 0;border-bottom:1px solid #f0f0f0;font-size:14px}
.status-row:last-child{border:none}

/* Saves table */
.save-row{display:grid;grid-template-columns:140px 1fr 90px 90px;gap:8px;padding:10px 0;border-bottom:1px solid #f0f0f0;font-size:13px;align-items:center}
.save-row:last-child{border:none}
.save-hdr{font-weight:600;color:#555;font-size:12px;text-transform:uppercase;letter-spacing:.05em}

/* Logs */
.log-container{background:#1a1a2e;border-radius:8px;padding:16px;font-family:'SF Mono','Cascadia Code','Courier New',monospace;font-size:13px;max-height:500px;overflow-y:auto;color:#a0aec0}
.log-entry{padding:2px 0;white-space:pre-wrap;word-break:break-all}
.log-time{color:#667eea}
.log-info{color:#a0aec0}.log-warn{color:#f59e0b}.log-error{color:#ef4444}
.log-controls{display:flex;gap:8px;margin-bottom:12px;align-items:center;flex-wrap:wrap}
.filter-btn{padding:5px 12px;border-radius:4px;border:1px solid #ddd;background:#fff;cursor:pointer;font-size:12px}
.filter-btn.active{background:#667eea;color:#fff;border-color:#667eea}

/* Notification banner */
#notification-container{position:fixed;top:60px;right:20px;z-index:200;max-width:420px;width:90%}
.alert{position:relative;padding:12px 40px 12px 16px;border-radius:6px;font-size:14px;box-shadow:0 4px 12px rgba(0,0,0,.15);border:1px solid transparent}
.alert-success{background:#dcfce7;color:#166534;border-color:#bbf7d0}
.alert-info{background:#dbeafe;color:#1e40af;border-color:#bfdbfe}
.alert-warning{background:#fef9c3;color:#854d0e;border-color:#fde68a}
.alert-danger{background:#fee2e2;color:#991b1b;border-color:#fecaca}
.btn-close{position:absolute;top:10px;right:12px;background:none;border:none;cursor:pointer;font-size:18px;line-height:1;color:inherit;opacity:.6}
.btn-close::after{content:"\00d7"}
.btn-close:hover{opacity:1}
.slide-in{animation:slideIn .3s ease}
.me-2{margin-right:.5rem}

.empty{text-align:center;padding:40px;color:#888}

@keyframes fadeIn{from{opacity:0;transform:translateY(8px)}to{opacity:1;transform:translateY(0)}}
@keyframes slideIn{from{opacity:0;transform:translateY(-20px)}to{opacity:1;transform:translateY(0)}}

@media(max-width:640px){
 .content{padding:12px}
 .stat-grid{grid-template-columns:1fr}
 .save-row{grid-template-columns:1fr 1fr;gap:4px}
 .tabs{overflow-x:auto}
}
:focus-visible{outline:2px solid #667eea;outline-offset:2px}
</style>
</head>
<body>

<div class="hdr">
 <h1>Auto-save Gateway</h1>
 <div class="hdr-right">
  <span id="hdr-status-text">Connecting...</span>
  <span id="hdr-dot" class="hdr-dot dot-yellow"></span>
 </div>
</div>

<div class="tabs" id="tab-bar">
 <div class="tab active" data-page="dashboard" onclick="nav('dashboard')">Dashboard</div>
 <div class="tab" data-page="forms" onclick="nav('forms')">Drafts</div>
 <div class="tab" data-page="saves" onclick="nav('saves')">Saves</div>
 <div class="tab" data-page="logs" onclick="nav('logs')">Logs</div>
</div>

<div id="notification-container"></div>

<div class="content">
 <div class="page active" id="page-dashboard">
  <div class="card">
   <h2>Orders</h2>
   <div class="stat-grid">
    <div class="stat"><strong id="stat-today">-</strong><span>Today</span></div>
    <div class="stat"><strong id="stat-week">-</strong><span>This week</span></div>
    <div class="stat"><strong id="stat-pending">-</strong><span>Pending</span></div>
   </div>
  </div>
  <div class="card">
   <h2>Gateway</h2>
   <div class="status-row"><span>Forms</span><span id="st-forms">-</span></div>
   <div class="status-row"><span>Unsaved drafts</span><span id="st-dirty">-</span></div>
   <div class="status-row"><span>Order feed</span><span id="st-feed">-</span></div>
   <div class="status-row"><span>Session</span><span id="st-idle">-</span></div>
   <div class="status-row"><span>Uptime</span><span id="st-uptime">-</span></div>
  </div>
 </div>

 <div class="page" id="page-forms">
  <div id="forms-list"><div class="empty">No forms configured</div></div>
 </div>

 <div class="page" id="page-saves">
  <div class="card">
   <h2>Recent Saves</h2>
   <div class="save-row save-hdr"><span>Form</span><span>Result</span><span>Fields</span><span>When</span></div>
   <div id="saves-list"></div>
  </div>
 </div>

 <div class="page" id="page-logs">
  <div class="log-controls">
   <button class="filter-btn active" onclick="setLogFilter('all',this)">All</button>
   <button class="filter-btn" onclick="setLogFilter('info',this)">Info</button>
   <button class="filter-btn" onclick="setLogFilter('warn',this)">Warning</button>
   <button class="filter-btn" onclick="setLogFilter('error',this)">Error</button>
  </div>
  <div class="log-container" id="log-viewer"></div>
 </div>
</div>

<script>
// ============ State ============
var currentPage = 'dashboard';
var logFilter = 'all';
var pollTimer = null;
var forms = [];
var unload = {confirm: false, message: ''};
var lastActivity = 0;

// ============ Routing ============
function nav(page) {
 if (page === currentPage) return;
 currentPage = page;
 renderPage();
}

function renderPage() {
 var pages = document.querySelectorAll('.page');
 for (var i = 0; i < pages.length; i++) pages[i].classList.remove('active');
 var tabs = document.querySelectorAll('.tab');
 for (var i = 0; i < tabs.length; i++) tabs[i].classList.remove('active');
 document.getElementById('page-' + currentPage).classList.add('active');
 document.querySelector('.tab[data-page="' + currentPage + '"]').classList.add('active');

 clearInterval(pollTimer);
 if (currentPage === 'dashboard') { refreshDashboard(); pollTimer = setInterval(refreshDashboard, 5000); }
 if (currentPage === 'forms') loadForms();
 if (currentPage === 'saves') { refreshSaves(); pollTimer = setInterval(refreshSaves, 3000); }
 if (currentPage === 'logs') { refreshLogs(); pollTimer = setInterval(refreshLogs, 3000); }
}

// ============ Dashboard ============
function refreshDashboard() {
 fetch('/api/status').then(function(r){return r.json()}).then(function(d) {
  document.getElementById('st-forms').textContent = d.forms_count;
  document.getElementById('st-dirty').textContent = d.dirty_forms;
  document.getElementById('st-uptime').textContent = d.uptime;
  document.getElementById('st-feed').innerHTML = d.feed ? (d.feed.connected ? badge('Connected', 'green') : badge(d.feed.reconnecting ? 'Reconnecting' : 'Offline', 'red')) : badge('Disabled', 'gray');
  document.getElementById('st-idle').innerHTML = d.idle ? badge(d.idle.state, d.idle.state === 'active' ? 'green' : 'yellow') : badge('Disabled', 'gray');
 }).catch(function(){});
 fetch('/api/stats').then(function(r){return r.json()}).then(function(d) {
  if (d.available) renderStats(d.stats);
 }).catch(function(){});
}

function renderStats(s) {
 document.getElementById('stat-today').textContent = s.today_orders;
 document.getElementById('stat-week').textContent = s.week_orders;
 document.getElementById('stat-pending').textContent = s.pending_orders;
}

// ============ Drafts ============
function loadForms() {
 fetch('/api/forms').then(function(r){return r.json()}).then(function(d) {
  forms = d.forms || [];
  var list = document.getElementById('forms-list');
  if (forms.length === 0) { list.innerHTML = '<div class="empty">No forms configured</div>'; return; }
  var html = '';
  forms.forEach(function(f) {
   var fields = (f.fields && f.fields.length) ? f.fields : ['title', 'notes'];
   var values = f.state.last_payload || {};
   html += '<div class="card"><h2>' + esc(f.id) + ' <span id="badge-' + esc(f.id) + '">' + stateBadge(f.state) + '</span></h2>';
   html += '<form data-form="' + esc(f.id) + '" onsubmit="return false">';
   fields.forEach(function(name) {
    var v = values[name] ? values[name][0] : '';
    var tag = name === 'notes' || name === 'description' ? 'textarea' : 'input';
    html += '<div class="form-group"><label>' + esc(name) + '</label>';
    html += tag === 'textarea'
     ? '<textarea name="' + esc(name) + '" rows="4">' + esc(v) + '</textarea>'
     : '<input name="' + esc(name) + '" value="' + esc(v) + '">';
    html += '</div>';
   });
   html += '<div class="form-help">Saved ' + (f.delay_ms / 1000) + 's after you stop typing. Ctrl+S saves now.</div>';
   html += '</form></div>';
  });
  list.innerHTML = html;
  var els = list.querySelectorAll('form');
  for (var i = 0; i < els.length; i++) {
   els[i].addEventListener('input', onInput);
   els[i].addEventListener('change', onInput);
  }
 }).catch(function(){});
}

function onInput(e) {
 var form = e.currentTarget;
 var body = new URLSearchParams(new FormData(form));
 body.set('_field', e.target.name || '');
 fetch('/api/forms/' + encodeURIComponent(form.dataset.form) + '/input', {method: 'POST', body: body})
  .then(function(r){return r.json()})
  .then(function(d) { if (d.state) setBadge(form.dataset.form, d.state); checkUnload(); })
  .catch(function(){});
}

function saveNow(id) {
 fetch('/api/forms/' + encodeURIComponent(id) + '/save', {method: 'POST'})
  .then(function(r){return r.json()})
  .then(function(d) { if (d.state) setBadge(id, d.state); checkUnload(); })
  .catch(function(){});
}

function checkUnload() {
 fetch('/api/unload', {method: 'POST'}).then(function(r){return r.json()}).then(function(d) { unload = d; }).catch(function(){});
}

function stateBadge(s) {
 if (s.in_flight) return badge('Saving', 'blue');
 if (s.dirty && s.last_error) return badge('Not saved', 'red');
 if (s.dirty) return badge('Unsaved', 'yellow');
 if (s.last_saved_at && s.last_saved_at.indexOf('0001') !== 0) return badge('Saved', 'green');
 return badge('Clean', 'gray');
}

function setBadge(id, s) {
 var el = document.getElementById('badge-' + id);
 if (el) el.innerHTML = stateBadge(s);
}

// ============ Saves ============
function refreshSaves() {
 fetch('/api/saves').then(function(r){return r.json()}).then(function(d) {
  var saves = d.saves || [];
  var html = '';
  saves.forEach(function(s) {
   var color = s.status === 'saved' ? 'green' : (s.status === 'saving' ? 'blue' : (s.status === 'cancelled' ? 'gray' : 'red'));
   html += '<div class="save-row"><span>' + esc(s.form_id) + '</span><span>' + badge(s.status, color) + (s.error ? ' ' + esc(s.error) : '') + '</span><span>' + s.fields + '</span><span>' + timeAgo(s.created_at) + '</span></div>';
  });
  if (saves.length === 0) html = '<div class="empty">No saves yet</div>';
  document.getElementById('saves-list').innerHTML = html;
 }).catch(function(){});
}

// ============ Logs ============
function refreshLogs() {
 var levelParam = logFilter === 'all' ? '' : '?level=' + logFilter;
 fetch('/api/logs' + levelParam).then(function(r){return r.json()}).then(function(data) {
  var viewer = document.getElementById('log-viewer');
  var logs = data.logs || [];
  var html = '';
  for (var i = logs.length - 1; i >= 0; i--) {
   var l = logs[i];
   var ts = l.timestamp ? new Date(l.timestamp).toLocaleString() : '';
   var lc = l.level === 'error' ? 'log-error' : (l.level === 'warn' ? 'log-warn' : 'log-info');
   html += '<div class="log-entry"><span class="log-time">[' + esc(ts) + ']</span> <span class="' + lc + '">' + esc((l.level || 'info').toUpperCase()) + '</span> ' + esc(l.message) + '</div>';
  }
  if (logs.length === 0) html = '<div style="color:#555">No log entries</div>';
  viewer.innerHTML = html;
 }).catch(function(){});
}

function setLogFilter(filter, btn) {
 logFilter = filter;
 var btns = document.querySelectorAll('.filter-btn');
 for (var i = 0; i < btns.length; i++) btns[i].classList.remove('active');
 btn.classList.add('active');
 refreshLogs();
}

// ============ Banner ============
function showBanner(b) {
 document.getElementById('notification-container').innerHTML = b.html;
}

function closeBanner(id) {
 var el = document.querySelector('#notification-container [data-id="' + id + '"]');
 if (el) el.remove();
}

document.getElementById('notification-container').addEventListener('click', function(e) {
 if (!e.target.classList.contains('btn-close')) return;
 var alert = e.target.closest('.alert');
 if (!alert) return;
 fetch('/api/notification/' + encodeURIComponent(alert.dataset.id), {method: 'DELETE'}).catch(function(){});
 alert.remove();
});

// ============ Push ============
function connectPush() {
 var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
 var ws = new WebSocket(proto + location.host + '/ws');
 ws.onopen = function() { setConn(true); };
 ws.onclose = function() { setConn(false); setTimeout(connectPush, 2000); };
 ws.onmessage = function(e) {
  var ev = JSON.parse(e.data);
  if (ev.type === 'notification.show') showBanner(ev.data);
  if (ev.type === 'notification.close') closeBanner(ev.data.id);
  if (ev.type === 'stats') renderStats(ev.data);
  if (ev.type === 'logout' && ev.data && ev.data.url) window.location.href = ev.data.url;
 };
}

function setConn(ok) {
 document.getElementById('hdr-status-text').textContent = ok ? 'Live' : 'Disconnected';
 document.getElementById('hdr-dot').className = 'hdr-dot ' + (ok ? 'dot-green' : 'dot-red');
}

// ============ Activity ============
function touch() {
 var now = Date.now();
 if (now - lastActivity < 30000) return;
 lastActivity = now;
 fetch('/api/activity', {method: 'POST'}).catch(function(){});
}
['mousemove', 'keydown', 'click', 'scroll'].forEach(function(t) { document.addEventListener(t, touch, {passive: true}); });

document.addEventListener('keydown', function(e) {
 if ((e.ctrlKey || e.metaKey) && e.key === 's') {
  e.preventDefault();
  var form = document.activeElement && document.activeElement.form;
  if (form && form.dataset.form) saveNow(form.dataset.form);
 }
});

window.addEventListener('beforeunload', function(e) {
 if (!unload.confirm) return;
 e.preventDefault();
 e.returnValue = unload.message;
 return unload.message;
});

// ============ Helpers ============
function badge(text, color) {
 return '<span class="badge badge-' + color + '">' + esc(text) + '</span>';
}

function esc(s) {
 if (!s) return '';
 var d = document.createElement('div');
 d.appendChild(document.createTextNode(String(s)));
 return d.innerHTML.replace(/"/g, '&quot;');
}

function timeAgo(ts) {
 if (!ts) return '-';
 var d = new Date(ts);
 var secs = Math.floor((Date.now() - d.getTime()) / 1000);
 if (secs < 5) return 'just now';
 if (secs < 60) return secs + 's ago';
 if (secs < 3600) return Math.floor(secs/60) + 'm ago';
 if (secs < 86400) return Math.floor(secs/3600) + 'h ago';
 return Math.floor(secs/86400) + 'd ago';
}

// Init
fetch('/api/notification').then(function(r){return r.json()}).then(function(d) { if (d.notification) showBanner(d.notification); }).catch(function(){});
connectPush();
renderPage();
checkUnload();
</script>
</body>
</html>`
